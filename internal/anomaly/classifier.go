package anomaly

import (
	"context"
	"math"
	"sync"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
	"gonum.org/v1/gonum/stat"
)

// Input is a single reading submitted for classification.
type Input struct {
	Machine string
	Kind    machine.Kind
	Sensor  string
	Value   float64
	Range   registry.SensorRange
}

type Verdict struct {
	Anomalous bool
	Score     float64
}

// Classifier decides whether a reading is anomalous. A returned error makes
// the detector fall back to the range rule for that reading.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Verdict, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, in Input) (Verdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, in Input) (Verdict, error) {
	return f(ctx, in)
}

const minZScoreHistory = 5

// ZScore flags readings that deviate from the recent history of the same
// machine sensor by more than threshold standard deviations.
type ZScore struct {
	threshold float64
	window    int

	mu      sync.Mutex
	history map[string][]float64
}

func NewZScore(threshold float64, window int) *ZScore {
	if window < minZScoreHistory {
		window = minZScoreHistory
	}
	return &ZScore{
		threshold: threshold,
		window:    window,
		history:   make(map[string][]float64),
	}
}

// Classify scores in.Value against the history collected so far, then adds
// it to the history. Until enough history exists, or while the history has
// no variance, it returns ErrInsufficientData.
func (z *ZScore) Classify(ctx context.Context, in Input) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	key := in.Machine + "/" + in.Sensor

	z.mu.Lock()
	defer z.mu.Unlock()

	hist := z.history[key]
	defer func() {
		hist = append(hist, in.Value)
		if len(hist) > z.window {
			hist = hist[len(hist)-z.window:]
		}
		z.history[key] = hist
	}()

	if len(hist) < minZScoreHistory {
		return Verdict{}, errors.New().WithData(ErrInsufficientData, key)
	}

	mean, std := stat.MeanStdDev(hist, nil)
	if std == 0 || math.IsNaN(std) {
		return Verdict{}, errors.New().WithData(ErrInsufficientData, key)
	}

	score := math.Abs(in.Value-mean) / std
	return Verdict{Anomalous: score > z.threshold, Score: score}, nil
}
