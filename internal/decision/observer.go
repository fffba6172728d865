package decision

import (
	"context"
	"time"

	"github.com/nerrad567/luxbridge/internal/controller"
)

// Observer appends a Record for every light outcome that carried a command.
type Observer struct {
	repo      Repository
	threshold float64
	timeout   time.Duration
}

// defaultWriteTimeout bounds a single insert so a locked database cannot
// stall the dispatch worker.
const defaultWriteTimeout = 2 * time.Second

// NewObserver returns a controller.Observer backed by repo.
func NewObserver(repo Repository, threshold float64) *Observer {
	return &Observer{repo: repo, threshold: threshold, timeout: defaultWriteTimeout}
}

// Name implements controller.Observer.
func (o *Observer) Name() string {
	return "decision_log"
}

// Observe implements controller.Observer.
func (o *Observer) Observe(ctx context.Context, reading controller.Reading, out controller.Outcome) error {
	if out.Kind != controller.KindLight || out.Publish == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	lux := out.Value
	return o.repo.Create(ctx, &Record{
		Lux:       &lux,
		Command:   out.Command.String(),
		Threshold: o.threshold,
		Topic:     reading.Topic,
		CreatedAt: reading.ReceivedAt,
	})
}
