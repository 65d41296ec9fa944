package transport

import (
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// realSocketPair returns a connected pair of SOCK_SEQPACKET unix sockets,
// mirroring the control channel the front-end hands to a real worker.
func realSocketPair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, err
	}
	a, err := adoptSocket(fds[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := adoptSocket(fds[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
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

func newChannelPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, b, err := realSocketPair()
	require.NoError(t, err)
	return NewChannel(a, nil), NewChannel(b, nil)
}

func TestSendRecvRoundTrip(t *testing.T) {
	client, server := newChannelPair(t)
	defer client.Close()
	defer server.Close()

	msg := New(Propfind)
	msg.Params = [][]byte{
		[]byte("/srv/x/\x00"),
		nil,
		[]byte("1\x00"),
	}

	require.NoError(t, client.Send(msg))

	var scratch []byte
	got, outcome, err := server.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, Transferred, outcome)
	assert.Equal(t, Propfind, got.ID)
	assert.Equal(t, "/srv/x/", got.Str(ReqFile))
	assert.Equal(t, "1", got.Str(ReqDepth))
	assert.Equal(t, NoFD, got.FD)
}

func TestSendRecvWithFD(t *testing.T) {
	client, server := newChannelPair(t)
	defer client.Close()
	defer server.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	msg := New(OK).WithFD(int(r.Fd()))
	require.NoError(t, client.Send(msg))

	var scratch []byte
	got, _, err := server.Recv(&scratch)
	require.NoError(t, err)
	assert.NotEqual(t, NoFD, got.FD)
	syscall.Close(got.FD)
}

func TestRecvClosed(t *testing.T) {
	client, server := newChannelPair(t)
	defer server.Close()
	require.NoError(t, client.Close())

	var scratch []byte
	_, outcome, err := server.Recv(&scratch)
	require.NoError(t, err)
	assert.Equal(t, Closed, outcome)
}
