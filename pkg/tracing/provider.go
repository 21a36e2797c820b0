// Package tracing sets up the OpenTelemetry tracer provider that exports
// spans over OTLP/HTTP.
package tracing

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	errNoURL     = errors.New("URL is empty")
	errNoSvcName = errors.New("service Name is empty")
)

// NewProvider returns a tracer provider exporting to the collector at
// exporterURL and installs it as the global provider. fraction is the share
// of root spans that are sampled.
func NewProvider(ctx context.Context, svcName string, exporterURL url.URL, instanceID string, fraction float64) (*sdktrace.TracerProvider, error) {
	if exporterURL == (url.URL{}) {
		return nil, errNoURL
	}
	if svcName == "" {
		return nil, errNoSvcName
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(exporterURL.Host),
	}
	if exporterURL.Path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(exporterURL.Path))
	}
	if exporterURL.Scheme != "https" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	attributes := []attribute.KeyValue{
		attribute.String("service.name", svcName),
	}
	if instanceID != "" {
		attributes = append(attributes, attribute.String("service.instance.id", instanceID))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(fraction))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attributes...)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}
