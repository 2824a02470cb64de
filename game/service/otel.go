package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wricardo/mcp-training/crossroadbus/game/service"

// meter uses the global provider. Counters are no-ops until the embedding
// program installs a MeterProvider with otel.SetMeterProvider.
func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// serviceMetrics holds the counters fed by game operations.
type serviceMetrics struct {
	turns  metric.Int64Counter
	won    metric.Int64Counter
	lost   metric.Int64Counter
	frames metric.Int64Counter
	active metric.Int64ObservableGauge
}

func newServiceMetrics(m metric.Meter, moving func() int64) (*serviceMetrics, error) {
	sm := &serviceMetrics{}
	var err error

	sm.turns, err = m.Int64Counter(
		"crossroadbus.turns.accepted",
		metric.WithDescription("Turns accepted inside a crossroads"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}

	sm.won, err = m.Int64Counter(
		"crossroadbus.runs.won",
		metric.WithDescription("Runs that reached the finish"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating won counter: %w", err)
	}

	sm.lost, err = m.Int64Counter(
		"crossroadbus.runs.lost",
		metric.WithDescription("Runs that ended in a collision"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating lost counter: %w", err)
	}

	sm.frames, err = m.Int64Counter(
		"crossroadbus.frames",
		metric.WithDescription("Simulation frames ticked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	sm.active, err = m.Int64ObservableGauge(
		"crossroadbus.sessions.moving",
		metric.WithDescription("Sessions whose bus is currently driving"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating moving sessions gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(sm.active, moving())
			return nil
		},
		sm.active,
	)
	if err != nil {
		return nil, fmt.Errorf("registering sessions callback: %w", err)
	}

	return sm, nil
}

func configAttr(config string) metric.AddOption {
	return metric.WithAttributes(attribute.String("config", config))
}
