package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by semaphore operations after Close, including by
// waits that were blocked when Close was called.
var ErrClosed = errors.New("shm: semaphore closed")

// Sem is a cross-process counting semaphore backed by an eventfd in
// semaphore mode. The descriptor is created non-blocking so waits park the
// calling goroutine on the runtime poller instead of an OS thread.
type Sem struct {
	f *os.File
}

// NewSem creates a semaphore with the given initial count.
func NewSem(name string, init uint) (*Sem, error) {
	fd, err := unix.Eventfd(init, unix.EFD_SEMAPHORE|unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("shm: eventfd %q: %w", name, err)
	}
	return &Sem{f: os.NewFile(uintptr(fd), name)}, nil
}

// SemFromFile wraps an inherited eventfd. The Sem takes ownership of f.
func SemFromFile(f *os.File) *Sem {
	return &Sem{f: f}
}

// Post increments the count by one, waking one waiter.
func (s *Sem) Post() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := s.f.Write(buf[:]); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// Wait decrements the count by one, blocking while it is zero. It returns
// ErrClosed when the semaphore is closed, also from a blocked wait.
func (s *Sem) Wait() error {
	var buf [8]byte
	if _, err := s.f.Read(buf[:]); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Sem) TryWait() (bool, error) {
	rc, err := s.f.SyscallConn()
	if err != nil {
		return false, s.mapErr(err)
	}
	got := false
	var rerr error
	err = rc.Read(func(fd uintptr) bool {
		var buf [8]byte
		_, rerr = unix.Read(int(fd), buf[:])
		if rerr == unix.EAGAIN {
			rerr = nil
		} else if rerr == nil {
			got = true
		}
		// Never park, this is a try.
		return true
	})
	if err != nil {
		return false, s.mapErr(err)
	}
	if rerr != nil {
		return false, fmt.Errorf("shm: eventfd read: %w", rerr)
	}
	return got, nil
}

// File returns the backing descriptor, for passing to a child process.
func (s *Sem) File() *os.File {
	return s.f
}

// Close releases the descriptor and unblocks pending waiters with ErrClosed.
func (s *Sem) Close() error {
	return s.f.Close()
}

func (s *Sem) mapErr(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return ErrClosed
	}
	return err
}
