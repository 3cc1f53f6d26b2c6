package osint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTool(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.sh"), []byte("#!/bin/sh\n"+body), 0o755))
	return dir
}

func TestToolRunnerSuccessWritesOutput(t *testing.T) {
	dir := writeTool(t, `
mkdir -p captured
read answer
echo "[+] GitHub: https://github.com/$2 enc=$PYTHONIOENCODING args=$3,$4 stdin=[$answer]" > "captured/$2.txt"
`)
	r := NewToolRunner(dir, []string{"/bin/sh", "tool.sh"}, 5*time.Second, nil)

	require.NoError(t, r.Run(context.Background(), "jdoe"))

	data, err := os.ReadFile(r.OutputPath("jdoe"))
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, "https://github.com/jdoe")
	assert.Contains(t, line, "enc=utf-8")
	assert.Contains(t, line, "args=--scan,--fast")
	assert.Contains(t, line, "stdin=[]")
}

func TestToolRunnerNonZeroExit(t *testing.T) {
	dir := writeTool(t, "echo 'site list missing' >&2\nexit 3\n")
	r := NewToolRunner(dir, []string{"/bin/sh", "tool.sh"}, 5*time.Second, nil)

	err := r.Run(context.Background(), "jdoe")
	require.Error(t, err)
	assert.Equal(t, "OSINT tool failed with code 3: site list missing", err.Error())
}

func TestToolRunnerTimeoutKillsProcess(t *testing.T) {
	dir := writeTool(t, "exec sleep 30\n")
	r := NewToolRunner(dir, []string{"/bin/sh", "tool.sh"}, 150*time.Millisecond, nil)

	start := time.Now()
	err := r.Run(context.Background(), "jdoe")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScanTimeout), err.Error())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestToolRunnerCancelled(t *testing.T) {
	dir := writeTool(t, "exec sleep 30\n")
	r := NewToolRunner(dir, []string{"/bin/sh", "tool.sh"}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	err := r.Run(ctx, "jdoe")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), err.Error())
}

func TestToolRunnerMissingBinary(t *testing.T) {
	r := NewToolRunner(t.TempDir(), []string{"/definitely/not/here"}, time.Second, nil)
	err := r.Run(context.Background(), "jdoe")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "osint: start tool:"), err.Error())
}
