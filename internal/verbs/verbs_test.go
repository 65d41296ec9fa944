package verbs

import (
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couling/webdav-rap/internal/mimetype"
	"github.com/couling/webdav-rap/internal/transport"
)

func realSocketPair(t *testing.T) (*transport.Channel, *transport.Channel) {
	t.Helper()
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_SEQPACKET, 0)
	require.NoError(t, err)

	a := adopt(t, fds[0])
	b := adopt(t, fds[1])
	return transport.NewChannel(a, nil), transport.NewChannel(b, nil)
}

func adopt(t *testing.T, fd int) *net.UnixConn {
	t.Helper()
	f := os.NewFile(uintptr(fd), "socketpair")
	c, err := net.FileConn(f)
	_ = f.Close()
	require.NoError(t, err)
	return c.(*net.UnixConn)
}

func testRegistry(t *testing.T) *mimetype.Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mime.types", []byte("text/plain\ttxt\n"), 0644))
	reg, err := mimetype.Load(fs, "/etc/mime.types")
	require.NoError(t, err)
	return reg
}

func TestPutWritesBodyToFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")

	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, werr := w.WriteString("hello world")
	require.NoError(t, werr)
	require.NoError(t, w.Close())

	done := make(chan error, 1)
	go func() { done <- Put(server, target, int(r.Fd())) }()

	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	require.Equal(t, transport.Continue, msg.ID)

	msg, _, err = client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.Created, msg.ID)
	require.NoError(t, <-done)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestGetMissingFileReturnsNotFound(t *testing.T) {
	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	reg := testRegistry(t)
	done := make(chan error, 1)
	go func() { done <- Get(server, reg, "/no/such/file") }()

	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.NotFound, msg.ID)
	require.NoError(t, <-done)
}

func TestMkcolThenDelete(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub")

	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Mkcol(server, target) }()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.Created, msg.ID)
	require.NoError(t, <-done)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	go func() { done <- Delete(server, target) }()
	msg, _, err = client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.OKNoContent, msg.ID)
	require.NoError(t, <-done)

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

// TestDeleteNonDirectoryIntermediateIsNotFound covers §4.9's "missing or
// non-directory intermediate" rule: a path that walks through a regular
// file maps ENOTDIR to NOT_FOUND, not INTERNAL_ERROR.
func TestDeleteNonDirectoryIntermediateIsNotFound(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))
	target := filepath.Join(notADir, "child")

	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Delete(server, target) }()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.NotFound, msg.ID)
	require.NoError(t, <-done)
}

func TestMoveSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Move(server, src, dst) }()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.OKNoContent, msg.ID)
	require.NoError(t, <-done)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveEmptyTargetIsBadClientRequest(t *testing.T) {
	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Move(server, "/whatever", "") }()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.BadClientRequest, msg.ID)
	require.NoError(t, <-done)
}

func TestCopyIsInternalErrorStub(t *testing.T) {
	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Copy(server, "/x") }()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.InternalError, msg.ID)
	require.NoError(t, <-done)
}
