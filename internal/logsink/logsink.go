// Package logsink serializes diagnostic messages from every pipeline task
// onto a single writer.
//
// Producers enqueue without blocking; a full queue drops messages according
// to its overflow policy. Alerts use a separate lane that is never dropped
// to make room for diagnostics and is always written first. One consumer
// (Run) writes "<source>: <text>" lines, so output from concurrent
// producers is never interleaved.
package logsink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/queue"
)

// MaxTextLen bounds the byte length of a message text.
const MaxTextLen = 64

// DefaultCapacity is the number of messages buffered before dropping.
const DefaultCapacity = 16

// DefaultAlertTimeout bounds how long Alert waits for room in the alert lane.
const DefaultAlertTimeout = time.Second

// Source identifies the task that produced a message.
type Source int

const (
	SourceRegistry Source = iota
	SourceGenerator
	SourceCollector
	SourceDetector
	SourceHandler
	SourceLogger
)

func (s Source) String() string {
	switch s {
	case SourceRegistry:
		return "registry"
	case SourceGenerator:
		return "generator"
	case SourceCollector:
		return "collector"
	case SourceDetector:
		return "detector"
	case SourceHandler:
		return "handler"
	case SourceLogger:
		return "logger"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

type Message struct {
	Source Source
	Text   string
}

// NewMessage builds a message, truncating text to MaxTextLen bytes without
// splitting a UTF-8 sequence.
func NewMessage(src Source, text string) Message {
	return Message{Source: src, Text: truncate(text)}
}

func truncate(s string) string {
	if len(s) <= MaxTextLen {
		return s
	}
	n := MaxTextLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type Option func(*Sink)

// WithPolicy selects the overflow policy. Block is rejected in favor of
// DropNewest since producers must never wait on diagnostics.
func WithPolicy(p queue.Policy) Option {
	return func(s *Sink) {
		if p != queue.Block {
			s.policy = p
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sink) {
		s.metrics = m
	}
}

// WithAlertTimeout bounds how long Alert waits when the alert lane is full.
func WithAlertTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.alertTimeout = d
		}
	}
}

type Sink struct {
	out    io.Writer
	queue  *queue.Queue[Message]
	alerts *queue.Queue[Message]
	policy queue.Policy

	alertTimeout time.Duration

	// wake holds at most one pending signal for Run.
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a sink writing to out with room for capacity messages.
func New(out io.Writer, capacity int, opts ...Option) *Sink {
	s := &Sink{
		out:          out,
		policy:       queue.DropNewest,
		alertTimeout: DefaultAlertTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.queue = queue.New[Message](capacity,
		queue.WithPolicy[Message](s.policy),
		queue.WithDropCallback[Message](s.dropped),
	)
	s.alerts = queue.New[Message](capacity,
		queue.WithPolicy[Message](queue.Block),
		queue.WithTimeout[Message](s.alertTimeout),
	)

	return s
}

// Enqueue offers m without blocking and reports whether it was accepted.
func (s *Sink) Enqueue(m Message) bool {
	m.Text = truncate(m.Text)

	ok := s.queue.Offer(m)
	if ok {
		s.metrics.LogMessage(true)
		s.signal()
	}
	return ok
}

// Alert enqueues m on the alert lane, waiting up to the alert timeout for
// room. Alerts are written before any pending diagnostics. A returned error
// means the message was not enqueued.
func (s *Sink) Alert(ctx context.Context, m Message) error {
	m.Text = truncate(m.Text)

	if err := s.alerts.Put(ctx, m); err != nil {
		s.metrics.LogMessage(false)
		return err
	}

	s.metrics.LogMessage(true)
	s.signal()
	return nil
}

func (s *Sink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Logf formats and enqueues a message from src.
func (s *Sink) Logf(src Source, format string, args ...any) bool {
	return s.Enqueue(NewMessage(src, fmt.Sprintf(format, args...)))
}

// Reporter adapts the sink to a machine diagnostic reporter.
func (s *Sink) Reporter(src Source) machine.Reporter {
	return func(text string) {
		s.Enqueue(NewMessage(src, text))
	}
}

// Run writes queued messages until the sink is closed and drained, or ctx
// ends. On ctx cancellation the messages already buffered are still
// written.
func (s *Sink) Run(ctx context.Context) error {
	s.log.Debug().
		Int("capacity", s.queue.Cap()).
		Str("policy", s.policy.String()).
		Msg("Log sink started")

	for {
		if m, ok := s.next(); ok {
			s.write(m)
			continue
		}

		select {
		case <-s.wake:
		case <-s.done:
			s.drain()
			s.log.Debug().Msg("Log sink drained")
			return nil
		case <-ctx.Done():
			s.drain()
			return nil
		}
	}
}

// next returns the oldest alert, or the oldest diagnostic when no alert is
// pending.
func (s *Sink) next() (Message, bool) {
	if m, ok := s.alerts.TryTake(); ok {
		return m, true
	}
	return s.queue.TryTake()
}

func (s *Sink) drain() {
	for {
		m, ok := s.next()
		if !ok {
			return
		}
		s.write(m)
	}
}

func (s *Sink) write(m Message) {
	if _, err := fmt.Fprintf(s.out, "%d: %s\n", int(m.Source), m.Text); err != nil {
		s.log.Warn().Err(err).Str("source", m.Source.String()).Msg("Failed to write log message")
	}
}

func (s *Sink) dropped(m Message) {
	s.metrics.LogMessage(false)
	s.log.Debug().
		Str("source", m.Source.String()).
		Str("text", m.Text).
		Msg("Log queue full, message dropped")
}

// Close stops accepting messages. Run returns once the backlog is written.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.alerts.Close()
		s.queue.Close()
		close(s.done)
	})
}

// Len returns the number of buffered messages across both lanes.
func (s *Sink) Len() int {
	return s.queue.Len() + s.alerts.Len()
}

// Cap returns the diagnostic lane capacity.
func (s *Sink) Cap() int {
	return s.queue.Cap()
}

// Stats sums the counters of both lanes.
func (s *Sink) Stats() queue.Stats {
	d, a := s.queue.Stats(), s.alerts.Stats()
	return queue.Stats{
		Enqueued: d.Enqueued + a.Enqueued,
		Dequeued: d.Dequeued + a.Dequeued,
		Dropped:  d.Dropped + a.Dropped,
		TimedOut: d.TimedOut + a.TimedOut,
	}
}
