// Package relay delivers study records to the external spreadsheet
// collector. Delivery is fire-and-forget: enqueueing never blocks the
// session loop, failures are logged locally and never retried, and no
// acknowledgement is consumed.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Message is the collector's wire shape. Type is empty for event log rows,
// "trajectory" for a movement batch, "image" for a rendered frame.
type Message struct {
	Type         string  `json:"type,omitempty"`
	PlayerID     string  `json:"playerId"`
	SessionUUID  string  `json:"sessionUUID"`
	StartTime    string  `json:"startTime"`
	Timestamp    string  `json:"timestamp,omitempty"`
	ElapsedTime  int     `json:"elapsedTime,omitempty"`
	DecisionTime float64 `json:"decisionTime,omitempty"`
	Location     string  `json:"location,omitempty"`
	Event        string  `json:"event,omitempty"`
	Choice       string  `json:"choice,omitempty"`
	Result       string  `json:"result,omitempty"`
	History      []Point `json:"history,omitempty"`
	Image        string  `json:"image,omitempty"`
}

type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Time     int     `json:"time"`
	RealTime int64   `json:"realTime"`
}

// Transport posts one encoded message. Tests substitute a capturing stub.
type Transport interface {
	Post(ctx context.Context, body []byte) error
}

type HTTPTransport struct {
	URL    string
	Client *http.Client
}

func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *HTTPTransport) Post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	EnqueuedTotal uint64
	DroppedTotal  uint64
	SentTotal     uint64
	FailedTotal   uint64
	LastErrorUnix int64
}

// Relay drains a bounded queue from a worker goroutine so a slow or dead
// collector can never stall a tick.
type Relay struct {
	transport Transport
	logger    *log.Logger

	jobs chan Message
	wg   sync.WaitGroup

	enqueuedTotal atomic.Uint64
	droppedTotal  atomic.Uint64
	sentTotal     atomic.Uint64
	failedTotal   atomic.Uint64
	lastErrorUnix atomic.Int64
}

func New(t Transport, queueCapacity int, logger *log.Logger) *Relay {
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	r := &Relay{
		transport: t,
		logger:    logger,
		jobs:      make(chan Message, queueCapacity),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for m := range r.jobs {
			r.sendOne(m)
		}
	}()
	return r
}

// Enqueue hands a message to the worker. When the queue is saturated the
// message is dropped and counted; the caller is on the tick path and must
// not wait.
func (r *Relay) Enqueue(m Message) {
	if r == nil {
		return
	}
	r.enqueuedTotal.Add(1)
	select {
	case r.jobs <- m:
	default:
		dropped := r.droppedTotal.Add(1)
		r.logger.Printf("relay drop session=%s type=%q dropped_total=%d", m.SessionUUID, m.Type, dropped)
	}
}

// Close drains the queue and stops the worker.
func (r *Relay) Close() {
	if r == nil {
		return
	}
	close(r.jobs)
	r.wg.Wait()
}

func (r *Relay) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(r.jobs),
		QueueCapacity: cap(r.jobs),
		EnqueuedTotal: r.enqueuedTotal.Load(),
		DroppedTotal:  r.droppedTotal.Load(),
		SentTotal:     r.sentTotal.Load(),
		FailedTotal:   r.failedTotal.Load(),
		LastErrorUnix: r.lastErrorUnix.Load(),
	}
}

func (r *Relay) sendOne(m Message) {
	body, err := json.Marshal(m)
	if err != nil {
		r.failedTotal.Add(1)
		r.logger.Printf("relay marshal session=%s: %v", m.SessionUUID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := r.transport.Post(ctx, body); err != nil {
		r.failedTotal.Add(1)
		r.lastErrorUnix.Store(time.Now().Unix())
		r.logger.Printf("relay send session=%s type=%q: %v", m.SessionUUID, m.Type, err)
		return
	}
	r.sentTotal.Add(1)
}
