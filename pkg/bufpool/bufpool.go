// Package bufpool provides reusable datagram buffers for the UDP packet
// listener.
//
// Two size classes are pooled: a small class covering datagrams that fit a
// typical Ethernet MTU, and a large class equal to the listener's maximum
// datagram size. The listener reads into a large buffer, then copies the
// payload into the smallest class that fits before handing it to packet
// listeners, so large buffers are never held by slow handlers.
//
// # Usage
//
//	p := bufpool.New(64 << 10)
//	buf := p.Get(n)
//	defer p.Put(buf)
package bufpool

import (
	"sync"
	"sync/atomic"
)

// SmallSize covers a 1500-byte MTU datagram with room to spare.
const SmallSize = 2 << 10

// Pool hands out byte slices in two size classes. It is safe for concurrent use.
type Pool struct {
	small     sync.Pool
	large     sync.Pool
	largeSize int

	gets     atomic.Uint64
	oversize atomic.Uint64
}

// Stats reports pool usage counters.
type Stats struct {
	Gets     uint64
	Oversize uint64
}

// New creates a pool whose large class is largeSize bytes. A largeSize not
// above SmallSize disables the large class.
func New(largeSize int) *Pool {
	p := &Pool{largeSize: largeSize}
	p.small.New = func() any {
		buf := make([]byte, SmallSize)
		return &buf
	}
	p.large.New = func() any {
		buf := make([]byte, p.largeSize)
		return &buf
	}
	return p
}

// MaxSize is the largest pooled buffer size.
func (p *Pool) MaxSize() int {
	if p.largeSize > SmallSize {
		return p.largeSize
	}
	return SmallSize
}

// Get returns a slice of length size. Sizes above MaxSize are allocated
// directly and not pooled.
func (p *Pool) Get(size int) []byte {
	p.gets.Add(1)

	switch {
	case size <= SmallSize:
		return (*p.small.Get().(*[]byte))[:size]
	case size <= p.largeSize:
		return (*p.large.Get().(*[]byte))[:size]
	default:
		p.oversize.Add(1)
		return make([]byte, size)
	}
}

// Clone copies data into a pooled buffer of the smallest fitting class.
func (p *Pool) Clone(data []byte) []byte {
	buf := p.Get(len(data))
	copy(buf, data)
	return buf
}

// Put returns a buffer obtained from Get. Buffers of foreign capacity are
// dropped.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	switch cap(buf) {
	case SmallSize:
		p.small.Put(&full)
	case p.largeSize:
		p.large.Put(&full)
	}
}

func (p *Pool) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Oversize: p.oversize.Load()}
}
