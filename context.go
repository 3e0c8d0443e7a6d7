// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package peerip

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	loggerContextKey contextKey = iota
	stateContextKey
)

// ContextWithLogger returns a child context that stores logger. Capture
// failures observed on that call path are logged through it instead of the
// instrumentor's configured logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// loggerFromContext returns the logger stored by ContextWithLogger, or
// fallback when none is present.
func loggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// stateFromContext returns the connection state attached to ctx, if any.
func stateFromContext(ctx context.Context) *connState {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(stateContextKey).(*connState)
	return st
}

// contextWithState attaches st to a child of ctx.
func contextWithState(ctx context.Context, st *connState) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stateContextKey, st)
}
