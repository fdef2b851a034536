package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span and metric attributes must stay bounded: operation names, status values,
// backend names and failure kinds only. URLs, paths and transfer ids belong in logs.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span tagged with component and operation.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentHistoryOperation instruments a history store call.
func (t *Telemetry) InstrumentHistoryOperation(ctx context.Context, backend, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "history_"+operation, "history", fn)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordHistoryOperation(ctx, backend, operation, status, time.Since(start))

	return err
}

// InstrumentDownload instruments one transfer attempt. classify maps a failure
// to its bounded kind label.
func (t *Telemetry) InstrumentDownload(ctx context.Context, classify func(error) string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveDownloads(ctx)
	defer t.DecrementActiveDownloads(ctx)

	err := t.InstrumentOperation(ctx, "download", "engine", fn)

	status, kind := "success", ""
	if err != nil {
		status = "error"
		if classify != nil {
			kind = classify(err)
		}
	}

	t.RecordDownload(ctx, status, kind, time.Since(start))

	return err
}
