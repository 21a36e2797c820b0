package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/pkg/storage"
)

const pollCommand = "poll"

var errUnknownCommand = errors.New("unknown control command")

// PollResult summarises one pass over the contract's models.
type PollResult struct {
	Trained []uint64 `json:"trained"`
	Skipped []uint64 `json:"skipped"`
	Failed  []uint64 `json:"failed"`
}

// Schedule yields the time of the next pass. A zero time means no further
// scheduled passes.
type Schedule interface {
	Next(from time.Time) time.Time
}

// Daemon trains every model whose current weights have not been trained by
// this miner yet, once per poll interval or schedule activation.
type Daemon struct {
	svc      Service
	ledger   storage.SubmissionRepository
	interval time.Duration
	schedule Schedule
	trigger  chan struct{}
	logger   *slog.Logger
}

type DaemonOption func(*Daemon)

// WithSchedule runs passes on the schedule's activations instead of the poll
// interval.
func WithSchedule(s Schedule) DaemonOption {
	return func(d *Daemon) {
		d.schedule = s
	}
}

func NewDaemon(svc Service, ledger storage.SubmissionRepository, interval time.Duration, logger *slog.Logger, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		svc:      svc,
		ledger:   ledger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run polls until ctx is done. With neither an interval nor a schedule it
// makes a single pass.
func (d *Daemon) Run(ctx context.Context) error {
	_, err := d.Poll(ctx)
	if d.interval == 0 && d.schedule == nil {
		return err
	}
	if err != nil {
		d.logger.Warn("Poll failed", slog.Any("error", err))
	}

	for {
		timer := d.next()
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
		case <-d.trigger:
			timer.Stop()
		}

		if _, err := d.Poll(ctx); err != nil {
			d.logger.Warn("Poll failed", slog.Any("error", err))
		}
	}
}

// next arms a timer for the following pass. A schedule that never fires again
// leaves only triggers and cancellation.
func (d *Daemon) next() *time.Timer {
	if d.schedule == nil {
		return time.NewTimer(d.interval)
	}

	now := time.Now()
	at := d.schedule.Next(now)
	if at.IsZero() {
		t := time.NewTimer(time.Hour)
		t.Stop()

		return t
	}
	d.logger.Debug("Next poll scheduled", slog.Time("at", at))

	return time.NewTimer(at.Sub(now))
}

// Trigger requests an immediate pass. It never blocks.
func (d *Daemon) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// HandleControl serves control messages such as {"command": "poll"}.
func (d *Daemon) HandleControl(topic string, msg map[string]any) error {
	cmd, _ := msg["command"].(string)
	if cmd != pollCommand {
		return fmt.Errorf("%w: %q on %s", errUnknownCommand, cmd, topic)
	}
	d.Trigger()

	return nil
}

// Poll trains, in ascending id order, every model not yet in the ledger.
// Training failures are already reported as events and do not stop the pass.
func (d *Daemon) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult

	models, err := d.svc.Models(ctx)
	if err != nil {
		return res, err
	}

	ids := make([]uint64, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		m := models[id]
		if m.WeightsAddress == "" {
			res.Skipped = append(res.Skipped, id)

			continue
		}

		done, err := d.submitted(ctx, id, m.WeightsAddress)
		if err != nil {
			return res, err
		}
		if done {
			res.Skipped = append(res.Skipped, id)

			continue
		}

		if _, err := d.svc.Train(ctx, m); err != nil {
			res.Failed = append(res.Failed, id)

			continue
		}
		res.Trained = append(res.Trained, id)
	}

	d.logger.Info("Poll completed",
		slog.Int("trained", len(res.Trained)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)),
	)

	return res, nil
}

func (d *Daemon) submitted(ctx context.Context, modelID uint64, weightsAddress string) (bool, error) {
	if d.ledger == nil {
		return false, nil
	}

	_, err := d.ledger.Get(ctx, modelID, weightsAddress)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pkgerrors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
