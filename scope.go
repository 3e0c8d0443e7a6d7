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
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// WithPeerIPCapture registers span to receive the peer IP of the next
// connection established on ctx's call path.
//
// When ctx carries no pending state, a new state holding span is attached to
// the returned child context and the caller should use that context for the
// request. Otherwise span joins the existing list in place and ctx is
// returned unchanged, so outer scopes and the connection observe it too.
//
// The returned release function removes span from the list. It must be
// called on every exit path, typically with defer, and is safe to call more
// than once. A span already evicted because it stopped recording is not an
// error.
func WithPeerIPCapture(ctx context.Context, span trace.Span) (context.Context, func()) {
	if span == nil {
		return ctx, func() {}
	}

	st := stateFromContext(ctx)
	if st == nil {
		st = &connState{}
		ctx = contextWithState(ctx, st)
	}
	w := st.add(span)

	var once sync.Once
	return ctx, func() {
		once.Do(func() { st.remove(w) })
	}
}

// Capture runs fn inside a WithPeerIPCapture scope for span and releases the
// registration when fn returns or panics.
func Capture(ctx context.Context, span trace.Span, fn func(context.Context) error) error {
	ctx, release := WithPeerIPCapture(ctx, span)
	defer release()
	return fn(ctx)
}

// Fork returns a child of ctx with a private copy of its waiting list.
// Registrations, sweeps and releases made through the returned context do
// not touch the list of ctx, so concurrent requests fanned out from one
// scope can each fork and register their own spans. Spans already waiting on
// ctx are still stamped by captures on the fork. A ctx without a waiting
// list is returned unchanged.
func Fork(ctx context.Context) context.Context {
	st := stateFromContext(ctx)
	if st == nil {
		return ctx
	}
	return contextWithState(ctx, &connState{needIP: slices.Clone(st.needIP)})
}
