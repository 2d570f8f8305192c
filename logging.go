package ringpool

import (
	"context"
	"log/slog"
)

// disabledHandler is the slog.Handler of the default logger, it drops every record.
type disabledHandler struct{}

func (disabledHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (disabledHandler) Handle(context.Context, slog.Record) error { return nil }
func (h disabledHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h disabledHandler) WithGroup(string) slog.Handler           { return h }
