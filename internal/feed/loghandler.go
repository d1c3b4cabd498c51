package feed

import (
	"context"
	"log/slog"
	"time"
)

// BroadcastHandler wraps a slog.Handler and publishes records at or above
// min to a Hub before delegating.
type BroadcastHandler struct {
	inner slog.Handler
	hub   *Hub
	min   slog.Level
	attrs []slog.Attr
	group string
}

// NewBroadcastHandler publishes records at or above min to hub and passes
// every record to inner.
func NewBroadcastHandler(hub *Hub, inner slog.Handler, min slog.Level) *BroadcastHandler {
	return &BroadcastHandler{inner: inner, hub: hub, min: min}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.min {
		attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			attrs[a.Key] = attrValue(a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			attrs[h.prefix(a.Key)] = attrValue(a.Value)
			return true
		})

		h.hub.Publish(Event{
			Type:  TypeLog,
			Level: r.Level.String(),
			Msg:   r.Message,
			Time:  r.Time.UTC().Format(time.RFC3339),
			Attrs: attrs,
		})
	}
	return h.inner.Handle(ctx, r)
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithAttrs(attrs)
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: h.prefix(a.Key), Value: a.Value})
	}
	return &cp
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithGroup(name)
	cp.group = h.prefix(name)
	return &cp
}

func (h *BroadcastHandler) prefix(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	if v.Kind() == slog.KindDuration {
		return v.Duration().String()
	}
	return v.Any()
}
