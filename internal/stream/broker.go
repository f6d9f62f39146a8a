package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// ErrStreamNotFound is returned when a stream id is unknown or already
// reaped.
var ErrStreamNotFound = errors.New("stream not found")

// ChunkType tags each pushed chunk.
type ChunkType string

const (
	TypeMetadata ChunkType = "metadata"
	TypeResult   ChunkType = "result"
	TypeComplete ChunkType = "complete"
	TypeError    ChunkType = "error"
)

// CloseReason records why a session closed.
type CloseReason string

const (
	ReasonComplete         CloseReason = "complete"
	ReasonError            CloseReason = "error"
	ReasonClientDisconnect CloseReason = "client_disconnect"
)

// SessionStatus is the lifecycle state of a stream session.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// Chunk is one ordered unit of stream delivery.
type Chunk struct {
	Type      ChunkType `json:"type"`
	Payload   any       `json:"payload"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	id int
	ch chan Chunk
}

type session struct {
	mu          sync.Mutex
	id          string
	clientID    string
	query       string
	chunks      []Chunk
	status      SessionStatus
	closeReason CloseReason
	subs        []*subscriber
	nextSubID   int
	closedAt    time.Time
}

// Config holds the broker's tunables.
type Config struct {
	Stagger          time.Duration // delay between result chunks
	Grace            time.Duration // retention after close
	Workers          int           // delivery pool size
	SubscriberBuffer int           // per-subscriber channel capacity
}

// Broker owns all stream sessions. Each session buffers its chunks in
// order and fans them out to live subscribers; late subscribers replay
// the buffer first, then receive live chunks with no gap or duplicate.
type Broker struct {
	mu       sync.RWMutex
	sessions map[string]*session
	pool     *ants.Pool
	stagger  time.Duration
	grace    time.Duration
	subBuf   int
	logger   *logrus.Logger
	stop     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// NewBroker creates a broker with a delivery worker pool and starts
// the session reaper. Call Shutdown to release both.
func NewBroker(cfg Config, logger *logrus.Logger) (*Broker, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}

	b := &Broker{
		sessions: make(map[string]*session),
		pool:     pool,
		stagger:  cfg.Stagger,
		grace:    cfg.Grace,
		subBuf:   cfg.SubscriberBuffer,
		logger:   logger,
		stop:     make(chan struct{}),
		now:      time.Now,
	}

	go b.reap()

	return b, nil
}

// CreateStream allocates a new active session and returns its id.
func (b *Broker) CreateStream(clientID, query string) string {
	s := &session{
		id:       uuid.NewString(),
		clientID: clientID,
		query:    query,
		status:   StatusActive,
	}

	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"stream_id": s.id,
		"client_id": clientID,
	}).Debug("Stream session created")

	return s.id
}

// Emit appends a chunk with the next sequence number and notifies
// every current subscriber in subscription order. Returns false when
// the stream does not exist or is closed. A subscriber whose buffer is
// full misses the live send; the session buffer stays authoritative.
func (b *Broker) Emit(streamID string, typ ChunkType, payload any) bool {
	s := b.session(streamID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return false
	}

	chunk := Chunk{
		Type:      typ,
		Payload:   payload,
		Sequence:  len(s.chunks),
		Timestamp: b.now(),
	}
	s.chunks = append(s.chunks, chunk)

	for _, sub := range s.subs {
		select {
		case sub.ch <- chunk:
		default:
			b.logger.WithFields(logrus.Fields{
				"stream_id":  streamID,
				"subscriber": sub.id,
				"sequence":   chunk.Sequence,
			}).Warn("Subscriber buffer full, dropping live chunk")
		}
	}

	return true
}

// Subscribe attaches a listener to a stream. The returned channel
// first replays every buffered chunk in original order, then carries
// live chunks. It is closed when the session closes (immediately, for
// an already-closed session, after the replay). The cancel func
// detaches the listener.
func (b *Broker) Subscribe(streamID string) (<-chan Chunk, func(), error) {
	s := b.session(streamID)
	if s == nil {
		return nil, nil, ErrStreamNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Chunk, len(s.chunks)+b.subBuf)
	for _, chunk := range s.chunks {
		ch <- chunk
	}

	if s.status == StatusClosed {
		close(ch)
		return ch, func() {}, nil
	}

	sub := &subscriber{id: s.nextSubID, ch: ch}
	s.nextSubID++
	s.subs = append(s.subs, sub)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, cur := range s.subs {
			if cur.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(cur.ch)
				return
			}
		}
	}

	return ch, cancel, nil
}

// Close transitions a session to closed, records the reason, and
// closes all subscriber channels. The session remains readable for the
// grace period, then the reaper discards it.
func (b *Broker) Close(streamID string, reason CloseReason) bool {
	s := b.session(streamID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return false
	}

	s.status = StatusClosed
	s.closeReason = reason
	s.closedAt = b.now()

	for _, sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil

	b.logger.WithFields(logrus.Fields{
		"stream_id": streamID,
		"reason":    reason,
		"chunks":    len(s.chunks),
	}).Debug("Stream session closed")

	return true
}

// SessionInfo is a read-only view of a session.
type SessionInfo struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"clientId"`
	Query       string        `json:"query"`
	Status      SessionStatus `json:"status"`
	CloseReason CloseReason   `json:"closeReason,omitempty"`
	Chunks      int           `json:"chunks"`
}

// Session returns a snapshot of one session's state.
func (b *Broker) Session(streamID string) (SessionInfo, error) {
	s := b.session(streamID)
	if s == nil {
		return SessionInfo{}, ErrStreamNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionInfo{
		ID:          s.id,
		ClientID:    s.clientID,
		Query:       s.query,
		Status:      s.status,
		CloseReason: s.closeReason,
		Chunks:      len(s.chunks),
	}, nil
}

// Shutdown stops the reaper and releases the delivery pool.
func (b *Broker) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.pool.Release()
}

func (b *Broker) session(streamID string) *session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessions[streamID]
}

// reap discards sessions that have been closed for longer than the
// grace period. Active subscribers are unaffected: closed sessions
// have none.
func (b *Broker) reap() {
	interval := b.grace / 10
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			cutoff := b.now().Add(-b.grace)
			b.mu.Lock()
			for id, s := range b.sessions {
				s.mu.Lock()
				expired := s.status == StatusClosed && s.closedAt.Before(cutoff)
				s.mu.Unlock()
				if expired {
					delete(b.sessions, id)
				}
			}
			b.mu.Unlock()
		}
	}
}
