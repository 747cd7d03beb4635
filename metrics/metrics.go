// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// SettlementMetrics tracks settlement activity per deployment.
type SettlementMetrics struct {
	meter api.Meter
	Opts  api.MeasurementOption

	TransfersInitiated   api.Int64Counter
	TransfersCompleted   api.Int64Counter
	TransfersCompensated api.Int64Counter
	FeeCheckFailures     api.Int64Counter
	PayloadSize          api.Int64Histogram
}

// NewSettlementMetrics creates an instance of metrics
func NewSettlementMetrics(meter api.Meter, env, instanceID string) (*SettlementMetrics, error) {
	opts := api.WithAttributes(attribute.String("env", env), attribute.String("instance", instanceID))

	transfersInitiated, err := meter.Int64Counter(
		"settlement.TransfersInitiated",
		api.WithDescription("Number of transfers dispatched to the transport"),
	)
	if err != nil {
		return nil, err
	}
	transfersCompleted, err := meter.Int64Counter(
		"settlement.TransfersCompleted",
		api.WithDescription("Number of transfers delivered to the receiver"),
	)
	if err != nil {
		return nil, err
	}
	transfersCompensated, err := meter.Int64Counter(
		"settlement.TransfersCompensated",
		api.WithDescription("Number of completions that refunded the original asset after a failed destination swap"),
	)
	if err != nil {
		return nil, err
	}
	feeCheckFailures, err := meter.Int64Counter(
		"settlement.FeeCheckFailures",
		api.WithDescription("Number of initiations rejected by the relayer fee check"),
	)
	if err != nil {
		return nil, err
	}
	payloadSize, err := meter.Int64Histogram(
		"settlement.PayloadSize",
		api.WithDescription("Byte size of dispatched wire payloads"),
	)
	if err != nil {
		return nil, err
	}

	return &SettlementMetrics{
		meter:                meter,
		Opts:                 opts,
		TransfersInitiated:   transfersInitiated,
		TransfersCompleted:   transfersCompleted,
		TransfersCompensated: transfersCompensated,
		FeeCheckFailures:     feeCheckFailures,
		PayloadSize:          payloadSize,
	}, nil
}

func (m *SettlementMetrics) TrackInitiated(ctx context.Context, payloadLen int) {
	m.TransfersInitiated.Add(ctx, 1, m.Opts)
	m.PayloadSize.Record(ctx, int64(payloadLen), m.Opts)
}

func (m *SettlementMetrics) TrackCompleted(ctx context.Context) {
	m.TransfersCompleted.Add(ctx, 1, m.Opts)
}

func (m *SettlementMetrics) TrackCompensated(ctx context.Context) {
	m.TransfersCompensated.Add(ctx, 1, m.Opts)
}

func (m *SettlementMetrics) TrackFeeCheckFailure(ctx context.Context) {
	m.FeeCheckFailures.Add(ctx, 1, m.Opts)
}
