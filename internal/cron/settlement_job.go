package cron

import (
	"context"
	"fmt"

	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

type settlementSweeper interface {
	SweepEligible(ctx context.Context, limit int) (int, error)
}

// SettlementJobParams configure the settlement sweep.
type SettlementJobParams struct {
	Logger      *logger.Logger
	Settlements settlementSweeper
	Batch       int
}

// NewSettlementJob builds the job that creates settlements for paid payments
// the synchronous path missed.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlements service required")
	}
	return &settlementJob{
		logg:        params.Logger,
		settlements: params.Settlements,
		batch:       params.Batch,
	}, nil
}

type settlementJob struct {
	logg        *logger.Logger
	settlements settlementSweeper
	batch       int
}

func (j *settlementJob) Name() string { return "settlement-sweep" }

func (j *settlementJob) Run(ctx context.Context) (int, error) {
	created, err := j.settlements.SweepEligible(ctx, j.batch)
	if err != nil {
		return 0, fmt.Errorf("settlement sweep: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "created", created)
	j.logg.Info(logCtx, "settlement sweep complete")
	return created, nil
}
