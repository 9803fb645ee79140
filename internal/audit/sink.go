package audit

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

var _ Sink = (*ZapSink)(nil)

// ZapSink writes events to the structured log.
type ZapSink struct {
	lg *zap.Logger
}

// NewZapSink creates a sink logging through the given logger.
func NewZapSink(lg *zap.Logger) *ZapSink {
	return &ZapSink{lg: lg}
}

// Emit implements Sink.
func (s *ZapSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event_type", string(e.Type)),
		zap.String("order_id", e.OrderID),
		zap.String("customer_id", e.CustomerID),
		zap.Time("at", e.At),
	}
	if !e.Amount.IsZero() {
		fields = append(fields, zap.String("amount", e.Amount.StringFixed(2)))
	}
	for k, v := range e.Detail {
		fields = append(fields, zap.String(k, v))
	}
	s.lg.Info("audit event", fields...)
}

var _ Sink = (*WriterSink)(nil)

// WriterSink appends one JSON object per event to a writer (JSONL). Encode
// or write failures are logged and swallowed; audit must never fail a
// checkout.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
	lg *zap.Logger
}

// NewWriterSink creates a JSONL sink over w.
func NewWriterSink(w io.Writer, lg *zap.Logger) *WriterSink {
	return &WriterSink{w: w, lg: lg}
}

// Emit implements Sink.
func (s *WriterSink) Emit(_ context.Context, e Event) {
	var enc jx.Encoder
	encodeEvent(&enc, e)
	enc.Raw([]byte("\n"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(enc.Bytes()); err != nil {
		s.lg.Error("write audit event", zap.Error(err), zap.String("event_id", e.ID))
	}
}

func encodeEvent(enc *jx.Encoder, e Event) {
	enc.ObjStart()
	enc.FieldStart("id")
	enc.Str(e.ID)
	enc.FieldStart("type")
	enc.Str(string(e.Type))
	enc.FieldStart("order_id")
	enc.Str(e.OrderID)
	enc.FieldStart("customer_id")
	enc.Str(e.CustomerID)
	enc.FieldStart("at")
	enc.Str(e.At.Format("2006-01-02T15:04:05.000Z07:00"))
	if !e.Amount.IsZero() {
		enc.FieldStart("amount")
		enc.Str(e.Amount.StringFixed(2))
	}
	if len(e.Detail) > 0 {
		enc.FieldStart("detail")
		enc.ObjStart()
		for _, k := range sortedKeys(e.Detail) {
			enc.FieldStart(k)
			enc.Str(e.Detail[k])
		}
		enc.ObjEnd()
	}
	enc.ObjEnd()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
