// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON logger at the configured level. An unknown
// level falls back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
