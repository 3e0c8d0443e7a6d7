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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	instrumentationName = "github.com/pjscruggs/peerip"

	// CaptureAttemptsMetric counts capture attempts by outcome.
	CaptureAttemptsMetric = "peerip.capture.attempts"
)

// Outcome values recorded on the outcome attribute of CaptureAttemptsMetric.
const (
	OutcomeSkipped  = "skipped"
	OutcomePending  = "pending"
	OutcomeFailed   = "failed"
	OutcomeCaptured = "captured"
)

var outcomeKey = attribute.Key("outcome")

type captureMetrics struct {
	attempts metric.Int64Counter
}

// newCaptureMetrics creates the capture counter on mp, falling back to a
// no-op counter when the instrument cannot be created.
func newCaptureMetrics(mp metric.MeterProvider) *captureMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	counter, err := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(Version)).Int64Counter(
		CaptureAttemptsMetric,
		metric.WithDescription("Peer IP capture attempts by outcome."),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		otel.Handle(err)
		counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(CaptureAttemptsMetric)
	}
	return &captureMetrics{attempts: counter}
}

// record increments the attempt counter for outcome.
func (m *captureMetrics) record(ctx context.Context, outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(outcomeKey.String(outcome)))
}
