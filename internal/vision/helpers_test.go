package vision

import (
	"context"
	"errors"
	"sync"
)

type stubClient struct {
	mu        sync.Mutex
	response  Response
	err       error
	responses []Response
	errs      []error
	requests  []Request
	calls     int
}

func (s *stubClient) Complete(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	n := s.calls
	s.calls++

	if n < len(s.errs) && s.errs[n] != nil {
		return Response{}, s.errs[n]
	}
	if len(s.responses) > 0 {
		if n >= len(s.responses) {
			return Response{}, errors.New("no scripted response")
		}
		return s.responses[n], nil
	}
	if s.err != nil {
		return Response{}, s.err
	}
	return s.response, nil
}

func (s *stubClient) lastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
