package middleware

import (
	"context"

	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ miner.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    miner.Service
}

func Tracing(tracer trace.Tracer, svc miner.Service) miner.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Connect(ctx context.Context, dataDir, passwordFile string) (err error) {
	ctx, span := tm.tracer.Start(ctx, "connect", trace.WithAttributes(
		attribute.String("data_dir", dataDir),
	))
	defer endSpan(span, &err)

	return tm.svc.Connect(ctx, dataDir, passwordFile)
}

func (tm *tracing) Models(ctx context.Context) (models map[uint64]sonar.Model, err error) {
	ctx, span := tm.tracer.Start(ctx, "list-models")
	defer endSpan(span, &err)

	return tm.svc.Models(ctx)
}

func (tm *tracing) Model(ctx context.Context, id uint64) (m sonar.Model, err error) {
	ctx, span := tm.tracer.Start(ctx, "get-model", trace.WithAttributes(
		attribute.Int64("id", int64(id)),
	))
	defer endSpan(span, &err)

	return tm.svc.Model(ctx, id)
}

func (tm *tracing) Train(ctx context.Context, model sonar.Model) (r sonar.Receipt, err error) {
	ctx, span := tm.tracer.Start(ctx, "train-model", trace.WithAttributes(
		attribute.Int64("id", int64(model.ID)),
		attribute.String("weights", model.WeightsAddress),
	))
	defer endSpan(span, &err)

	return tm.svc.Train(ctx, model)
}

func (tm *tracing) Submissions(ctx context.Context, offset, limit uint64) (page storage.SubmissionPage, err error) {
	ctx, span := tm.tracer.Start(ctx, "list-submissions", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer endSpan(span, &err)

	return tm.svc.Submissions(ctx, offset, limit)
}

func (tm *tracing) State() miner.State {
	return tm.svc.State()
}

func (tm *tracing) Operator() string {
	return tm.svc.Operator()
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
