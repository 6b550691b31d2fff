package hnet

import (
	"sync"
	"time"

	"github.com/baiyanhuang/hnet/errors"
)

// Pool keeps idle, already-handshaken synchronous sessions for reuse.
// Sessions are single-owner, so the pool hands exclusive ownership out
// on Get and takes it back on Put. All pooled sessions share one
// factory, so they carry the same address and definitions.
type Pool struct {
	// New builds and connects a fresh session when the pool is empty.
	New func() (*Client, error)

	// IdleTimeout closes sessions parked longer than this; zero keeps
	// them forever.
	IdleTimeout time.Duration

	// MaxIdle caps parked sessions; zero means 2.
	MaxIdle int

	mutex  sync.Mutex
	idle   []pooled
	closed bool
}

type pooled struct {
	cl     *Client
	idleAt time.Time
}

func (p *Pool) maxIdle() int {
	if p.MaxIdle > 0 {
		return p.MaxIdle
	}
	return 2
}

// Get returns a connected session, reusing the most recently parked
// one when possible.
func (p *Pool) Get() (*Client, error) {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil, errors.ErrPoolClosed
	}

	var stale []pooled
	var found *Client
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.IdleTimeout > 0 && time.Since(pc.idleAt) > p.IdleTimeout {
			stale = append(stale, pc)
			continue
		}
		found = pc.cl
		break
	}
	p.mutex.Unlock()

	for _, pc := range stale {
		_ = pc.cl.Close()
	}
	if found != nil {
		return found, nil
	}
	return p.New()
}

// Put parks a healthy session for reuse. A session that failed should
// be Closed by the caller instead.
func (p *Pool) Put(cl *Client) {
	p.mutex.Lock()
	if p.closed || len(p.idle) >= p.maxIdle() {
		p.mutex.Unlock()
		_ = cl.Close()
		return
	}
	p.idle = append(p.idle, pooled{cl: cl, idleAt: time.Now()})
	p.mutex.Unlock()
}

// Close closes every parked session and rejects further Gets.
func (p *Pool) Close() {
	p.mutex.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mutex.Unlock()

	for _, pc := range idle {
		_ = pc.cl.Close()
	}
}
