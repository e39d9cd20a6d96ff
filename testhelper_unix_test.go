//go:build linux || darwin

package corttimer

import "golang.org/x/sys/unix"

// pipeFDs returns a fresh readable/writable fd pair for tests that need a
// real descriptor to register with the OS poller.
func pipeFDs() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func writeByte(fd int) (int, error) {
	return unix.Write(fd, []byte{0})
}
