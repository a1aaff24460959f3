package instrumentation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds pre-configured metric instruments for the authentication core
type Metrics struct {
	// LoginStarted counts initiated login flows
	LoginStarted metric.Int64Counter

	// LoginSucceeded counts completed authentications
	LoginSucceeded metric.Int64Counter

	// LoginFailed counts failed callbacks, labeled by failure reason
	LoginFailed metric.Int64Counter

	// DirectorySyncFailures counts non-fatal directory sync errors
	DirectorySyncFailures metric.Int64Counter

	// ProviderRequestDuration measures outbound provider call latency in seconds,
	// labeled by operation
	ProviderRequestDuration metric.Float64Histogram

	// FlowStoreEntries gauges the number of in-flight login attempts
	FlowStoreEntries metric.Int64ObservableGauge
}

func newMetrics(inst *Instrumentation) (*Metrics, error) {
	sessionMeter := inst.Meter("session")
	providerMeter := inst.Meter("provider")
	storageMeter := inst.Meter("storage")

	loginStarted, err := sessionMeter.Int64Counter(
		"auth.login.started",
		metric.WithDescription("Number of initiated login flows"),
	)
	if err != nil {
		return nil, err
	}

	loginSucceeded, err := sessionMeter.Int64Counter(
		"auth.login.succeeded",
		metric.WithDescription("Number of completed authentications"),
	)
	if err != nil {
		return nil, err
	}

	loginFailed, err := sessionMeter.Int64Counter(
		"auth.login.failed",
		metric.WithDescription("Number of failed authorization callbacks"),
	)
	if err != nil {
		return nil, err
	}

	syncFailures, err := sessionMeter.Int64Counter(
		"auth.directory.sync_failures",
		metric.WithDescription("Number of non-fatal directory sync errors"),
	)
	if err != nil {
		return nil, err
	}

	providerDuration, err := providerMeter.Float64Histogram(
		"auth.provider.request_duration",
		metric.WithDescription("Outbound provider request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	flowEntries, err := storageMeter.Int64ObservableGauge(
		"auth.flow_store.entries",
		metric.WithDescription("Number of in-flight login attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		LoginStarted:            loginStarted,
		LoginSucceeded:          loginSucceeded,
		LoginFailed:             loginFailed,
		DirectorySyncFailures:   syncFailures,
		ProviderRequestDuration: providerDuration,
		FlowStoreEntries:        flowEntries,
	}, nil
}

// RecordLoginStarted records an initiated login flow
func (m *Metrics) RecordLoginStarted(ctx context.Context) {
	m.LoginStarted.Add(ctx, 1)
}

// RecordLoginSucceeded records a completed authentication
func (m *Metrics) RecordLoginSucceeded(ctx context.Context) {
	m.LoginSucceeded.Add(ctx, 1)
}

// RecordLoginFailed records a failed callback with its reason
func (m *Metrics) RecordLoginFailed(ctx context.Context, reason string) {
	m.LoginFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordDirectorySyncFailure records a non-fatal directory sync error
func (m *Metrics) RecordDirectorySyncFailure(ctx context.Context) {
	m.DirectorySyncFailures.Add(ctx, 1)
}

// RecordProviderRequest records the latency of an outbound provider call
func (m *Metrics) RecordProviderRequest(ctx context.Context, operation string, d time.Duration) {
	m.ProviderRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
