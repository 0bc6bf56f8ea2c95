package degrade

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventhub/edge-gateway/internal/logging"
)

// Entry is one failure record shipped to the external log sink.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	CorrID         string    `json:"corrId"`
	Type           string    `json:"type"`
	Path           string    `json:"path"`
	Query          string    `json:"query,omitempty"`
	IsAPI          bool      `json:"isApi"`
	Status         int       `json:"status"`
	UpstreamStatus int       `json:"upstreamStatus,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	DurationMs     int64     `json:"durationMs"`
}

// Sink ships failure entries to an optional external collector. Notify never
// blocks the request path and sink failures are swallowed by contract: they
// surface only on the gateway's own log, never to the client.
type Sink struct {
	url     string
	client  *http.Client
	mu      sync.RWMutex
	closed  bool
	entries chan Entry
	done    chan struct{}
}

// sinkBuffer bounds queued entries; overflow is dropped, not back-pressured.
const sinkBuffer = 256

// NewSink creates a Sink posting to url. An empty url disables shipping;
// entries are still written to the gateway log.
func NewSink(url string, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Sink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		entries: make(chan Entry, sinkBuffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Notify queues an entry for shipping. It never blocks: when the buffer is
// full the entry is dropped and only the local log line remains.
func (s *Sink) Notify(e Entry) {
	logging.Warn("degraded response",
		zap.String("corrId", e.CorrID),
		zap.String("type", e.Type),
		zap.String("path", e.Path),
		zap.Int("status", e.Status),
		zap.Int64("durationMs", e.DurationMs),
	)
	if s == nil || s.url == "" {
		return
	}
	// In-flight handlers may still degrade after shutdown started; those
	// entries are dropped, never a panic.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.entries <- e:
	default:
	}
}

// Close stops the shipping worker after draining queued entries. Notify
// calls racing or following Close degrade to drops. Close is idempotent.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.entries)
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.entries {
		s.ship(e)
	}
}

func (s *Sink) ship(e Entry) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		logging.Debug("log sink unreachable", zap.Error(err))
		return
	}
	resp.Body.Close()
}
