// Package shm provides the Linux primitives behind the cross-process port
// transport: anonymous shared-memory regions (memfd + mmap), counting
// semaphores that goroutines can block on (eventfd in semaphore mode), and a
// fixed-size record codec for placing one message into a region slot.
//
// Both memfds and eventfds are plain file descriptors, so a parent process
// hands them to a child through fd inheritance and both sides map or wait on
// the same kernel object.
package shm
