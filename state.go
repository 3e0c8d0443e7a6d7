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
	"slices"

	"go.opentelemetry.io/otel/trace"
)

// waiter is one registration of a span awaiting the peer IP. Registrations
// are tracked by pointer so removal never compares span values, which are
// not guaranteed to be comparable.
type waiter struct {
	span trace.Span
}

// connState is the per-call-path record of spans waiting for the peer IP of
// the next connection. A single *connState is shared by every context derived
// from the one it was attached to, so appends and removals are observed by
// all of them.
type connState struct {
	needIP []*waiter
}

// add appends span to the waiting list and returns its registration.
func (s *connState) add(span trace.Span) *waiter {
	w := &waiter{span: span}
	s.needIP = append(s.needIP, w)
	return w
}

// remove drops w from the waiting list. A registration already evicted by
// the non-recording sweep is ignored.
func (s *connState) remove(w *waiter) {
	if i := slices.Index(s.needIP, w); i >= 0 {
		s.needIP = slices.Delete(s.needIP, i, i+1)
	}
}

// empty reports whether no span is waiting.
func (s *connState) empty() bool {
	return s == nil || len(s.needIP) == 0
}

// sweep evicts every span that stopped recording. Eviction swaps the last
// entry into the vacated slot, so the list order is not preserved. It reports
// whether any span is still waiting.
func (s *connState) sweep(ctx context.Context, logger *slog.Logger) bool {
	for i := len(s.needIP) - 1; i >= 0; i-- {
		w := s.needIP[i]
		if w.span != nil && w.span.IsRecording() {
			continue
		}
		if w.span != nil {
			logger.DebugContext(ctx, "span is not recording",
				slog.String("span_id", w.span.SpanContext().SpanID().String()))
		}
		last := len(s.needIP) - 1
		s.needIP[i] = s.needIP[last]
		s.needIP[last] = nil
		s.needIP = s.needIP[:last]
	}
	return len(s.needIP) > 0
}

// Pending reports how many spans on ctx's call path are still waiting for a
// peer IP. Spans that stopped recording are counted until the next capture
// attempt evicts them.
func Pending(ctx context.Context) int {
	st := stateFromContext(ctx)
	if st == nil {
		return 0
	}
	return len(st.needIP)
}
