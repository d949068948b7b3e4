package httpclient

import (
	"net/http"
	"sync"
	"time"
)

// reuseRetireThreshold and idleRetireAfter bound how long a pooled handle
// lives before it is dropped in favor of a fresh one.
const (
	reuseRetireThreshold = 200
	idleRetireAfter      = 2 * time.Minute
)

// handle is one pooled HTTP client, tracking its reuse count and last-used
// time so the pool can retire it.
type handle struct {
	client     *http.Client
	reuseCount int
	lastUsed   time.Time
}

func newHandle(useHTTP2 bool) *handle {
	transport := &http.Transport{
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false, // gzip Accept-Encoding is negotiated, and the body decoded, by the transport
		ForceAttemptHTTP2:   useHTTP2,
	}
	return &handle{
		client:   &http.Client{Transport: transport},
		lastUsed: time.Now(),
	}
}

func (h *handle) expired() bool {
	return h.reuseCount >= reuseRetireThreshold || time.Since(h.lastUsed) > idleRetireAfter
}

// pool is a mutex-guarded set of pooled HTTP handles with per-host
// affinity: handles are grouped in per-host free lists so a handle that
// has already resolved and connected to a host is preferentially reused
// for that same host, encouraging connection reuse. Acquisition blocks up
// to a bounded wait, and allocates a temporary "emergency" handle past
// that wait (capped by emergencyMax) so no caller deadlocks waiting on a
// saturated pool.
type pool struct {
	mu           sync.Mutex
	cond         *sync.Cond
	capacity     int
	inUse        int
	free         map[string][]*handle // host -> free handles
	waitFor      time.Duration
	emergency    int
	emergencyMax int
	useHTTP2     bool
}

// newPool creates a handle pool of the given fixed capacity.
func newPool(capacity int, waitFor time.Duration, emergencyMax int, useHTTP2 bool) *pool {
	p := &pool{
		capacity:     capacity,
		free:         make(map[string][]*handle),
		waitFor:      waitFor,
		emergencyMax: emergencyMax,
		useHTTP2:     useHTTP2,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// acquire returns a handle affine to host, waiting up to p.waitFor for one
// to free up before minting a temporary emergency handle (subject to
// emergencyMax).
func (p *pool) acquire(host string) (h *handle, emergency bool) {
	p.mu.Lock()
	deadline := time.Now().Add(p.waitFor)
	for {
		if hs := p.free[host]; len(hs) > 0 {
			h = hs[len(hs)-1]
			p.free[host] = hs[:len(hs)-1]
			p.inUse++
			p.mu.Unlock()
			return h, false
		}
		// No host-affine handle free; fall back to any free handle from
		// another host before waiting, reusing it as is for this host.
		for otherHost, hs := range p.free {
			if len(hs) == 0 {
				continue
			}
			h = hs[len(hs)-1]
			p.free[otherHost] = hs[:len(hs)-1]
			p.inUse++
			p.mu.Unlock()
			return h, false
		}
		if p.inUse < p.capacity {
			p.inUse++
			p.mu.Unlock()
			return newHandle(p.useHTTP2), false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitCh := make(chan struct{})
		go func() {
			time.Sleep(remaining)
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
			close(waitCh)
		}()
		p.cond.Wait()
		select {
		case <-waitCh:
		default:
		}
	}

	// Wait timed out: mint a temporary emergency handle rather than block
	// indefinitely, capped by emergencyMax.
	if p.emergency >= p.emergencyMax {
		p.mu.Unlock()
		// Hard ceiling reached: block until a handle frees, however long
		// it takes, rather than exceed the emergency ceiling.
		p.mu.Lock()
		for {
			for host2, hs := range p.free {
				if len(hs) == 0 {
					continue
				}
				h = hs[len(hs)-1]
				p.free[host2] = hs[:len(hs)-1]
				p.inUse++
				p.mu.Unlock()
				return h, false
			}
			p.cond.Wait()
		}
	}
	p.emergency++
	p.mu.Unlock()
	return newHandle(p.useHTTP2), true
}

// release returns a handle to the host-affine free list, or drops it if it
// was a temporary emergency handle or has expired (reuse threshold or idle
// time exceeded).
func (p *pool) release(host string, h *handle, emergency bool) {
	h.reuseCount++
	h.lastUsed = time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if emergency {
		p.emergency--
		p.cond.Broadcast()
		return
	}
	p.inUse--
	if !h.expired() {
		p.free[host] = append(p.free[host], h)
	}
	p.cond.Broadcast()
}
