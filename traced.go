package gorient

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedPool wraps a Pool so every acquired session is traced.
type TracedPool struct {
	inner  Pool
	tracer trace.Tracer
}

// NewTracedPool wraps pool with OpenTelemetry tracing. Spans are named
// "gorient.session.{operation}" and carry the statement text where one
// exists.
func NewTracedPool(inner Pool, tracer trace.Tracer) *TracedPool {
	return &TracedPool{inner: inner, tracer: tracer}
}

func (p *TracedPool) Acquire(ctx context.Context) (Session, error) {
	ctx, span := p.tracer.Start(ctx, "gorient.pool.acquire")
	defer span.End()

	session, err := p.inner.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &tracedSession{inner: session, tracer: p.tracer}, nil
}

type tracedSession struct {
	inner  Session
	tracer trace.Tracer
}

func (s *tracedSession) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "gorient.session."+op)
	span.SetAttributes(attrs...)
	return ctx, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *tracedSession) Load(ctx context.Context, rid RID) (Record, error) {
	ctx, span := s.span(ctx, "load", attribute.String("gorient.rid", rid.String()))
	rec, err := s.inner.Load(ctx, rid)
	finish(span, err)
	return rec, err
}

func (s *tracedSession) Query(ctx context.Context, text string, params ...any) ([]Record, error) {
	ctx, span := s.span(ctx, "query", attribute.String("db.statement", text))
	recs, err := s.inner.Query(ctx, text, params...)
	if err == nil {
		span.SetAttributes(attribute.Int("gorient.result_count", len(recs)))
	}
	finish(span, err)
	return recs, err
}

func (s *tracedSession) Command(ctx context.Context, text string, params ...any) (int, error) {
	ctx, span := s.span(ctx, "command", attribute.String("db.statement", text))
	n, err := s.inner.Command(ctx, text, params...)
	if err == nil {
		span.SetAttributes(attribute.Int("gorient.affected", n))
	}
	finish(span, err)
	return n, err
}

func (s *tracedSession) NewRecord(recordName string) Record {
	return s.inner.NewRecord(recordName)
}

func (s *tracedSession) Save(ctx context.Context, rec Record) error {
	ctx, span := s.span(ctx, "save")
	err := s.inner.Save(ctx, rec)
	finish(span, err)
	return err
}

func (s *tracedSession) Delete(ctx context.Context, rid RID) error {
	ctx, span := s.span(ctx, "delete", attribute.String("gorient.rid", rid.String()))
	err := s.inner.Delete(ctx, rid)
	finish(span, err)
	return err
}

func (s *tracedSession) Begin(ctx context.Context) error {
	ctx, span := s.span(ctx, "begin")
	err := s.inner.Begin(ctx)
	finish(span, err)
	return err
}

func (s *tracedSession) Commit(ctx context.Context) error {
	ctx, span := s.span(ctx, "commit")
	err := s.inner.Commit(ctx)
	finish(span, err)
	return err
}

func (s *tracedSession) Rollback(ctx context.Context) error {
	ctx, span := s.span(ctx, "rollback")
	err := s.inner.Rollback(ctx)
	finish(span, err)
	return err
}

func (s *tracedSession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
