//go:build linux

package corttimer

import (
	"golang.org/x/sys/unix"
)

// fdEntry is the per-fd registration state kept by platformPoller. It is a
// plain map value, not a preallocated array slot guarded by a lock: the
// driver that owns a platformPoller is the only goroutine that ever touches
// it, so no array preallocation or locking is needed to keep registration
// cheap.
type fdEntry struct {
	waiter *Waiter
	events PollEvents
}

// platformPoller wraps an epoll instance. It is constructed once per Driver
// and lives for the Driver's entire lifetime.
type platformPoller struct {
	epfd     int
	fds      map[int]*fdEntry
	eventBuf []unix.EpollEvent
}

func newPlatformPoller() (*platformPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &platformPoller{
		epfd:     epfd,
		fds:      make(map[int]*fdEntry),
		eventBuf: make([]unix.EpollEvent, 256),
	}, nil
}

func (p *platformPoller) close() error {
	return unix.Close(p.epfd)
}

func (p *platformPoller) fd() int { return p.epfd }

func (p *platformPoller) count() int { return len(p.fds) }

func (p *platformPoller) register(fd int, events PollEvents, w *Waiter) error {
	if _, exists := p.fds[fd]; exists {
		return ErrFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = &fdEntry{waiter: w, events: events}
	return nil
}

func (p *platformPoller) modify(fd int, events PollEvents) error {
	entry, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	entry.events = events
	return nil
}

func (p *platformPoller) unregister(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.fds, fd)
	return nil
}

// wait blocks for up to timeoutMs (negative means unbounded), appending
// ready (waiter, events) pairs to out and returning the extended slice.
func (p *platformPoller) wait(timeoutMs int, out []readyEvent) ([]readyEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		entry, ok := p.fds[fd]
		if !ok {
			continue
		}
		out = append(out, readyEvent{waiter: entry.waiter, events: epollToEvents(p.eventBuf[i].Events)})
	}
	return out, nil
}

// drainAll unregisters every fd and returns their waiters, for use by
// Driver.Destroy.
func (p *platformPoller) drainAll() []*Waiter {
	waiters := make([]*Waiter, 0, len(p.fds))
	for fd, entry := range p.fds {
		unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		waiters = append(waiters, entry.waiter)
	}
	p.fds = make(map[int]*fdEntry)
	return waiters
}

func eventsToEpoll(events PollEvents) uint32 {
	var e uint32
	if events&PollRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&PollWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) PollEvents {
	var events PollEvents
	if e&unix.EPOLLIN != 0 {
		events |= PollRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= PollWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= PollError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= PollHangup
	}
	return events
}
