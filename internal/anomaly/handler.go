package anomaly

import (
	"context"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/queue"
	"golang.org/x/time/rate"
)

// Notifier is an external response to an anomaly, such as an alert or an
// actuator call.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type HandlerOption func(*Handler)

func WithNotifier(n ...Notifier) HandlerOption {
	return func(h *Handler) {
		h.notifiers = append(h.notifiers, n...)
	}
}

// WithRateLimit throttles notifier calls to r per second with the given
// burst. Calls beyond the limit wait; events are never skipped.
func WithRateLimit(r float64, burst int) HandlerOption {
	return func(h *Handler) {
		h.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

type Handler struct {
	sink      *logsink.Sink
	notifiers []Notifier
	limiter   *rate.Limiter
	log       logger.Logger
}

func NewHandler(sink *logsink.Sink, opts ...HandlerOption) *Handler {
	h := &Handler{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle reports ev on the console alert lane and the operational log, then
// passes it to every notifier. An alert the console could not take and
// notifier failures are logged at error level and do not stop handling;
// only ctx cancellation is returned.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	if err := h.sink.Alert(ctx, logsink.NewMessage(logsink.SourceHandler, ev.String())); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.log.ErrorWithCode(errors.New().Wrap(ErrAlertLost, err)).
			Str("event", ev.ID.String()).
			Str("machine", ev.Machine).
			Str("sensor", ev.Sensor).
			Msg("Console alert lost")
	}

	h.log.Warn().
		Str("machine", ev.Machine).
		Str("sensor", ev.Sensor).
		Float64("value", ev.Value).
		Float64("min", ev.Range.Min).
		Float64("max", ev.Range.Max).
		Str("event", ev.ID.String()).
		Msg("Anomaly detected")

	for _, n := range h.notifiers {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := n.Notify(ctx, ev); err != nil {
			h.log.ErrorWithCode(errors.New().Wrap(ErrNotify, err)).
				Str("event", ev.ID.String()).
				Msg("Notifier failed")
		}
	}

	return nil
}

// Run handles events from in until it is closed and drained.
func (h *Handler) Run(ctx context.Context, in *queue.Queue[Event]) error {
	h.log.Debug().Int("notifiers", len(h.notifiers)).Msg("Handler started")

	for {
		ev, err := in.Take(ctx)
		if err != nil {
			if errors.HasCode(err, queue.ErrClosed) {
				h.log.Debug().Msg("Handler drained")
				return nil
			}
			return err
		}

		if err := h.Handle(ctx, ev); err != nil {
			return err
		}
	}
}
