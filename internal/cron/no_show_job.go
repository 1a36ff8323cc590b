package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

const defaultNoShowGrace = 2 * time.Hour

type noShowSweeper interface {
	SweepNoShows(ctx context.Context, startedBefore time.Time, batch int) (int, error)
}

// NoShowJobParams configure the no-show sweep.
type NoShowJobParams struct {
	Logger       *logger.Logger
	Reservations noShowSweeper
	Grace        time.Duration
	Batch        int
}

// NewNoShowJob builds the job that closes out reservations whose luggage
// never arrived within the grace period after the window opened.
func NewNoShowJob(params NoShowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultNoShowGrace
	}
	return &noShowJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		grace:        grace,
		batch:        params.Batch,
		now:          time.Now,
	}, nil
}

type noShowJob struct {
	logg         *logger.Logger
	reservations noShowSweeper
	grace        time.Duration
	batch        int
	now          func() time.Time
}

func (j *noShowJob) Name() string { return "reservation-no-show" }

func (j *noShowJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.grace)
	swept, err := j.reservations.SweepNoShows(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("no-show sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"swept":  swept,
	})
	j.logg.Info(logCtx, "no-show sweep complete")
	return swept, nil
}
