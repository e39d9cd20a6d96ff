//go:build darwin

package corttimer

import (
	"golang.org/x/sys/unix"
)

type fdEntry struct {
	waiter *Waiter
	events PollEvents
}

// platformPoller wraps a kqueue instance. Unlike a general-purpose readiness
// multiplexer this carries no locking at all: only the owning goroutine ever
// touches a Driver's poller.
type platformPoller struct {
	kq       int
	fds      map[int]*fdEntry
	eventBuf []unix.Kevent_t
}

func newPlatformPoller() (*platformPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &platformPoller{
		kq:       kq,
		fds:      make(map[int]*fdEntry),
		eventBuf: make([]unix.Kevent_t, 256),
	}, nil
}

func (p *platformPoller) close() error {
	return unix.Close(p.kq)
}

func (p *platformPoller) fd() int { return p.kq }

func (p *platformPoller) count() int { return len(p.fds) }

func (p *platformPoller) register(fd int, events PollEvents, w *Waiter) error {
	if _, exists := p.fds[fd]; exists {
		return ErrFDAlreadyRegistered
	}
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}
	p.fds[fd] = &fdEntry{waiter: w, events: events}
	return nil
}

func (p *platformPoller) modify(fd int, events PollEvents) error {
	entry, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	if del := entry.events &^ events; del != 0 {
		unix.Kevent(p.kq, eventsToKevents(fd, del, unix.EV_DELETE), nil, nil)
	}
	if add := events &^ entry.events; add != 0 {
		if _, err := unix.Kevent(p.kq, eventsToKevents(fd, add, unix.EV_ADD|unix.EV_ENABLE), nil, nil); err != nil {
			return err
		}
	}
	entry.events = events
	return nil
}

func (p *platformPoller) unregister(fd int) error {
	entry, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	unix.Kevent(p.kq, eventsToKevents(fd, entry.events, unix.EV_DELETE), nil, nil)
	delete(p.fds, fd)
	return nil
}

func (p *platformPoller) wait(timeoutMs int, out []readyEvent) ([]readyEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		entry, ok := p.fds[fd]
		if !ok {
			continue
		}
		out = append(out, readyEvent{waiter: entry.waiter, events: keventToEvents(&p.eventBuf[i])})
	}
	return out, nil
}

func (p *platformPoller) drainAll() []*Waiter {
	waiters := make([]*Waiter, 0, len(p.fds))
	for fd, entry := range p.fds {
		unix.Kevent(p.kq, eventsToKevents(fd, entry.events, unix.EV_DELETE), nil, nil)
		waiters = append(waiters, entry.waiter)
	}
	p.fds = make(map[int]*fdEntry)
	return waiters
}

func eventsToKevents(fd int, events PollEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&PollRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&PollWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) PollEvents {
	var events PollEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= PollRead
	case unix.EVFILT_WRITE:
		events |= PollWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= PollError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= PollHangup
	}
	return events
}
