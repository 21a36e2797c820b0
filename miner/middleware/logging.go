package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
)

var _ miner.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    miner.Service
}

func Logging(logger *slog.Logger, svc miner.Service) miner.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Connect(ctx context.Context, dataDir, passwordFile string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("data_dir", dataDir),
			slog.String("operator", lm.svc.Operator()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Connect failed", args...)

			return
		}
		lm.logger.Info("Connect completed successfully", args...)
	}(time.Now())

	return lm.svc.Connect(ctx, dataDir, passwordFile)
}

func (lm *loggingMiddleware) Models(ctx context.Context) (models map[uint64]sonar.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("count", len(models)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List models failed", args...)

			return
		}
		lm.logger.Info("List models completed successfully", args...)
	}(time.Now())

	return lm.svc.Models(ctx)
}

func (lm *loggingMiddleware) Model(ctx context.Context, id uint64) (m sonar.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.Uint64("id", id),
				slog.String("weights", m.WeightsAddress),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model failed", args...)

			return
		}
		lm.logger.Info("Get model completed successfully", args...)
	}(time.Now())

	return lm.svc.Model(ctx, id)
}

func (lm *loggingMiddleware) Train(ctx context.Context, model sonar.Model) (r sonar.Receipt, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.Uint64("id", model.ID),
				slog.String("weights", model.WeightsAddress),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train model failed", args...)

			return
		}
		args = append(args, slog.String("tx", r.TxHash))
		lm.logger.Info("Train model completed successfully", args...)
	}(time.Now())

	return lm.svc.Train(ctx, model)
}

func (lm *loggingMiddleware) Submissions(ctx context.Context, offset, limit uint64) (page storage.SubmissionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List submissions failed", args...)

			return
		}
		lm.logger.Info("List submissions completed successfully", args...)
	}(time.Now())

	return lm.svc.Submissions(ctx, offset, limit)
}

func (lm *loggingMiddleware) State() miner.State {
	return lm.svc.State()
}

func (lm *loggingMiddleware) Operator() string {
	return lm.svc.Operator()
}
