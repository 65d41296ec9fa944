package propfind

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
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

	a, err := adoptSocket(fds[0])
	require.NoError(t, err)
	b, err := adoptSocket(fds[1])
	require.NoError(t, err)
	return transport.NewChannel(a, nil), transport.NewChannel(b, nil)
}

func adoptSocket(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "socketpair")
	c, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	return c.(*net.UnixConn), nil
}

func testRegistry(t *testing.T) *mimetype.Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mime.types", []byte("text/plain\ttxt\n"), 0644))
	reg, err := mimetype.Load(fs, "/etc/mime.types")
	require.NoError(t, err)
	return reg
}

func TestRespondOnDirectoryIncludesChildrenUnlessDepth0(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	reg := testRegistry(t)

	for _, tc := range []struct {
		depth0       bool
		wantChildren bool
	}{
		{depth0: false, wantChildren: true},
		{depth0: true, wantChildren: false},
	} {
		client, server := realSocketPair(t)

		done := make(chan error, 1)
		go func() { done <- Respond(server, reg, dir, tc.depth0, AllProperties()) }()

		body := readMultistatusBody(t, client)
		require.NoError(t, <-done)
		client.Close()
		server.Close()

		assert.True(t, strings.Contains(body, dir+"/"), "location must carry trailing slash for a directory")
		if tc.wantChildren {
			assert.Contains(t, body, "a.txt")
			assert.Contains(t, body, "sub")
		} else {
			assert.NotContains(t, body, "a.txt")
		}
	}
}

func TestRespondOnFileOmitsQuotaProperties(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0644))

	reg := testRegistry(t)
	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Respond(server, reg, file, false, AllProperties()) }()

	body := readMultistatusBody(t, client)
	require.NoError(t, <-done)

	assert.Contains(t, body, "getcontentlength")
	assert.NotContains(t, body, "quota-available-bytes")
}

func TestRespondMissingTargetIsNotFound(t *testing.T) {
	reg := testRegistry(t)
	client, server := realSocketPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Respond(server, reg, "/no/such/path", false, AllProperties()) }()

	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, transport.NotFound, msg.ID)
	require.NoError(t, <-done)
}

func TestWin32AttributesHiddenBit(t *testing.T) {
	assert.Equal(t, "00000010", win32Attributes("/srv/dir", true))
	assert.Equal(t, "00000012", win32Attributes("/srv/.dir", true))
	assert.Equal(t, "00000020", win32Attributes("/srv/file.txt", false))
	assert.Equal(t, "00000022", win32Attributes("/srv/.hidden", false))
}

// readMultistatusBody receives the MULTISTATUS response message on client,
// reads its accompanying body fd to EOF and returns it as a string.
func readMultistatusBody(t *testing.T, client *transport.Channel) string {
	t.Helper()
	var scratch []byte
	msg, _, err := client.Recv(&scratch)
	require.NoError(t, err)
	require.Equal(t, transport.Multistatus, msg.ID)
	require.NotEqual(t, transport.NoFD, msg.FD)

	f := os.NewFile(uintptr(msg.FD), "multistatus-body")
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}
