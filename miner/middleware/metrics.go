package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
)

var _ miner.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     miner.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc miner.Service) miner.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Connect(ctx context.Context, dataDir, passwordFile string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "connect").Add(1)
		mm.latency.With("method", "connect").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Connect(ctx, dataDir, passwordFile)
}

func (mm *metricsMiddleware) Models(ctx context.Context) (map[uint64]sonar.Model, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-models").Add(1)
		mm.latency.With("method", "list-models").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Models(ctx)
}

func (mm *metricsMiddleware) Model(ctx context.Context, id uint64) (sonar.Model, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-model").Add(1)
		mm.latency.With("method", "get-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Model(ctx, id)
}

func (mm *metricsMiddleware) Train(ctx context.Context, model sonar.Model) (sonar.Receipt, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "train-model").Add(1)
		mm.latency.With("method", "train-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Train(ctx, model)
}

func (mm *metricsMiddleware) Submissions(ctx context.Context, offset, limit uint64) (storage.SubmissionPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-submissions").Add(1)
		mm.latency.With("method", "list-submissions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Submissions(ctx, offset, limit)
}

func (mm *metricsMiddleware) State() miner.State {
	return mm.svc.State()
}

func (mm *metricsMiddleware) Operator() string {
	return mm.svc.Operator()
}
