package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a shared-memory region mapped into the current process. The
// backing object is an anonymous memfd, so it lives as long as at least one
// process keeps the descriptor or mapping open.
type Region struct {
	f    *os.File
	data []byte
}

// CreateRegion allocates a new anonymous shared-memory region of the given
// size and maps it.
func CreateRegion(name string, size int) (*Region, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shm: memfd_create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: ftruncate %q to %d: %w", name, size, err)
	}
	return mapRegion(os.NewFile(uintptr(fd), name), size)
}

// RegionFromFile maps an inherited memfd of the given size. The Region takes
// ownership of f.
func RegionFromFile(f *os.File, size int) (*Region, error) {
	return mapRegion(f, size)
}

func mapRegion(f *os.File, size int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %q: %w", f.Name(), err)
	}
	return &Region{f: f, data: data}, nil
}

// Bytes returns the mapped memory. The slice stays valid until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// File returns the backing descriptor, for passing to a child process.
func (r *Region) File() *os.File {
	return r.f
}

// Close unmaps the region and closes the backing descriptor. The shared
// object is released by the kernel once every process has closed it.
func (r *Region) Close() error {
	var first error
	if r.data != nil {
		first = unix.Munmap(r.data)
		r.data = nil
	}
	if err := r.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
