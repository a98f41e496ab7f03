package chat

import (
	"sync"
	"time"
)

// DefaultBufferCap bounds how many recent turns a session buffer retains.
// The pipeline only ever prompts with the most recent PromptWindow turns,
// so the buffer never needs to grow with the durable transcript.
const DefaultBufferCap = 40

// Buffer is the ephemeral rolling window of one session's recent turns.
// It is disposable: after eviction or a restart it is rehydrated from the
// durable transcript.
type Buffer struct {
	mu        sync.Mutex
	msgs      []Message
	cap       int
	lastUsed  time.Time
	streaming bool
}

func (b *Buffer) Put(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
	if len(b.msgs) > b.cap {
		b.msgs = b.msgs[len(b.msgs)-b.cap:]
	}
	b.lastUsed = time.Now()
}

// Recent returns the most recent n turns, oldest first.
func (b *Buffer) Recent(n int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUsed = time.Now()
	if n <= 0 || len(b.msgs) == 0 {
		return nil
	}
	if n > len(b.msgs) {
		n = len(b.msgs)
	}
	out := make([]Message, n)
	copy(out, b.msgs[len(b.msgs)-n:])
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

// Last returns the most recent turn, if any.
func (b *Buffer) Last() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return Message{}, false
	}
	return b.msgs[len(b.msgs)-1], true
}

// TryAcquireStream takes the buffer's single active-stream permit. It
// returns false when another stream for the session is already running.
func (b *Buffer) TryAcquireStream() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streaming {
		return false
	}
	b.streaming = true
	b.lastUsed = time.Now()
	return true
}

func (b *Buffer) ReleaseStream() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streaming = false
	b.lastUsed = time.Now()
}

// BufferManager owns the per-session buffer map. At most one buffer exists
// per session id; buffers are created lazily on first reference and removed
// only by the idle-eviction sweep.
type BufferManager struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
	cap     int
}

func NewBufferManager(bufferCap int) *BufferManager {
	if bufferCap <= 0 {
		bufferCap = DefaultBufferCap
	}
	return &BufferManager{
		buffers: make(map[string]*Buffer),
		cap:     bufferCap,
	}
}

// Get returns the session's buffer, creating it on first reference.
func (m *BufferManager) Get(sessionID string) *Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[sessionID]
	if !ok {
		b = &Buffer{cap: m.cap, lastUsed: time.Now()}
		m.buffers[sessionID] = b
	}
	return b
}

func (m *BufferManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}

// EvictIdle drops buffers untouched for longer than maxIdle. Buffers with
// an active stream are never evicted. Returns how many were removed.
func (m *BufferManager) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, b := range m.buffers {
		b.mu.Lock()
		idle := !b.streaming && b.lastUsed.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(m.buffers, id)
			evicted++
		}
	}
	return evicted
}
