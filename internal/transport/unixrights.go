package transport

import "syscall"

// msgTrunc mirrors syscall.MSG_TRUNC; ReadMsgUnix reports it in flags when
// the supplied buffer was too small for the datagram.
const msgTrunc = syscall.MSG_TRUNC

// unixRights builds the SCM_RIGHTS ancillary-data blob carrying a single fd.
func unixRights(fd int) []byte {
	return syscall.UnixRights(fd)
}

// unixRightsBufSize returns the ancillary-data buffer size needed to hold n
// descriptors.
func unixRightsBufSize(n int) int {
	return syscall.CmsgSpace(n * 4)
}

// parseUnixRights extracts the first descriptor carried in an SCM_RIGHTS
// control message.
func parseUnixRights(oob []byte) (int, bool) {
	msgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, false
	}
	for _, m := range msgs {
		fds, err := syscall.ParseUnixRights(&m)
		if err != nil || len(fds) == 0 {
			continue
		}
		return fds[0], true
	}
	return 0, false
}
