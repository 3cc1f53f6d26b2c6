package vision

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const defaultImageMIME = "image/png"

// DetectMIME sniffs an image payload, falling back to PNG for anything the
// sniffer does not recognise as an image.
func DetectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return defaultImageMIME
}

// DecodeBase64 accepts either bare base64 or a data URL and returns the bytes
// together with the MIME type (declared or sniffed).
func DecodeBase64(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	declared := ""
	if strings.HasPrefix(s, "data:") {
		if comma := strings.IndexByte(s, ','); comma >= 0 {
			meta := s[len("data:"):comma]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				meta = meta[:semi]
			}
			declared = meta
			s = s[comma+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", err
		}
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if declared == "" || !strings.HasPrefix(declared, "image/") {
		declared = DetectMIME(data)
	}
	return data, declared, nil
}

// NewImage wraps raw bytes, sniffing the MIME type when none is given.
func NewImage(data []byte, mimeType string) Image {
	if strings.TrimSpace(mimeType) == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = DetectMIME(data)
	}
	return Image{Data: data, MIMEType: mimeType}
}
