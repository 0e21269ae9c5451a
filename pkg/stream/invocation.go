package stream

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/logger"
	"github.com/ajitpratap0/stratum/pkg/metrics"
	"github.com/ajitpratap0/stratum/pkg/observability"
)

var (
	invocationSeq atomic.Uint64
	collectors    sync.Map // kernel name -> *metrics.Collector
)

func collectorFor(kernel string) *metrics.Collector {
	if c, ok := collectors.Load(kernel); ok {
		return c.(*metrics.Collector)
	}
	c, _ := collectors.LoadOrStore(kernel, metrics.NewCollector(kernel))
	return c.(*metrics.Collector)
}

// Invocation tracks one kernel call from Begin to End
type Invocation struct {
	id        string
	kernel    string
	dtype     string
	rows      int
	timer     *metrics.Timer
	span      *observability.Span
	log       *zap.Logger
	collector *metrics.Collector
}

// Begin opens an invocation of kernel over rows elements of dtype. The
// returned context carries the invocation id and kernel name for logging.
func (s *Stream) Begin(ctx context.Context, kernel, dtype string, rows int) (context.Context, *Invocation) {
	id := strconv.FormatUint(invocationSeq.Add(1), 10)
	ctx = context.WithValue(ctx, logger.InvocationIDKey, id)
	ctx = context.WithValue(ctx, logger.KernelKey, kernel)

	ctx, span := observability.StartSpan(ctx, kernel,
		attribute.String("stratum.type", dtype),
		attribute.Int("stratum.rows", rows),
		attribute.String("stratum.invocation_id", id),
	)

	log := s.logger.With(
		zap.String("invocation_id", id),
		zap.String("kernel", kernel),
	)
	log.Debug("kernel launch",
		zap.String("type", dtype),
		zap.Int("rows", rows),
		zap.Int("workers", s.workers))

	return ctx, &Invocation{
		id:        id,
		kernel:    kernel,
		dtype:     dtype,
		rows:      rows,
		timer:     metrics.NewTimer(kernel),
		span:      span,
		log:       log,
		collector: collectorFor(kernel),
	}
}

// ID returns the invocation id
func (inv *Invocation) ID() string { return inv.id }

// Event records a named step of the invocation on its span.
func (inv *Invocation) Event(name string, attrs ...attribute.KeyValue) {
	inv.span.AddEvent(name, attrs...)
}

// End closes the invocation, recording metrics, the span status and, for
// failures, an error log entry.
func (inv *Invocation) End(err error) {
	elapsed := inv.timer.Stop()
	inv.collector.RecordInvocation(inv.dtype, err, elapsed, inv.rows)
	inv.span.End(err)

	if err == nil {
		inv.log.Debug("kernel done", zap.Duration("elapsed", elapsed))
		return
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", string(errors.TypeOf(err))),
		zap.Duration("elapsed", elapsed),
	}
	if se, ok := errors.As(err); ok && len(se.Details) > 0 {
		fields = append(fields, zap.Any("details", se.Details))
	}
	inv.log.Error("kernel failed", fields...)
}
