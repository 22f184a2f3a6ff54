// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package upstream

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/metrics"
	"github.com/tomtom215/dispatchctl/internal/models"
)

// BreakerClient wraps a Client with a gobreaker circuit breaker so a
// flapping or overloaded upstream trips after a sustained failure rate
// instead of letting every caller queue up on network timeouts
// (spec.md §7, "Upstream unavailable").
//
// DETERMINISM NOTE: like the teacher's sync-layer breaker, this uses real
// time for its interval/timeout bookkeeping. Tests exercising retry and
// recovery behavior should drive the wrapped Client directly rather than
// racing the breaker's clock.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewBreakerClient wraps client with a breaker that opens once at least 10
// requests have been observed in the rolling window and 60% have failed,
// matching the teacher's Tautulli breaker tuning.
func NewBreakerClient(client Client, name string) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("upstream circuit breaker opening")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", stateString(from)).Str("to", stateString(to)).Msg("upstream circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateString(from), stateString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{client: client, cb: cb, name: name}
}

func stateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

func cast[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, errors.New("upstream: unexpected circuit breaker result type")
	}
	return typed, nil
}

func (b *BreakerClient) ListChannels(ctx context.Context, page, pageSize int, search, group string) (*ChannelPage, error) {
	return cast[*ChannelPage](b.execute(func() (any, error) { return b.client.ListChannels(ctx, page, pageSize, search, group) }))
}

func (b *BreakerClient) GetChannel(ctx context.Context, id int) (*models.Channel, error) {
	return cast[*models.Channel](b.execute(func() (any, error) { return b.client.GetChannel(ctx, id) }))
}

func (b *BreakerClient) CreateChannel(ctx context.Context, data models.Channel) (*models.Channel, error) {
	return cast[*models.Channel](b.execute(func() (any, error) { return b.client.CreateChannel(ctx, data) }))
}

func (b *BreakerClient) UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error) {
	return cast[*models.Channel](b.execute(func() (any, error) { return b.client.UpdateChannel(ctx, id, data) }))
}

func (b *BreakerClient) DeleteChannel(ctx context.Context, id int) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.DeleteChannel(ctx, id) })
	return err
}

func (b *BreakerClient) AssignChannelNumbers(ctx context.Context, ids []int, starting float64) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.AssignChannelNumbers(ctx, ids, starting) })
	return err
}

func (b *BreakerClient) ListChannelGroups(ctx context.Context) ([]models.Group, error) {
	return cast[[]models.Group](b.execute(func() (any, error) { return b.client.ListChannelGroups(ctx) }))
}

func (b *BreakerClient) CreateChannelGroup(ctx context.Context, name string) (*models.Group, error) {
	return cast[*models.Group](b.execute(func() (any, error) { return b.client.CreateChannelGroup(ctx, name) }))
}

func (b *BreakerClient) UpdateChannelGroup(ctx context.Context, id int, data map[string]any) (*models.Group, error) {
	return cast[*models.Group](b.execute(func() (any, error) { return b.client.UpdateChannelGroup(ctx, id, data) }))
}

func (b *BreakerClient) DeleteChannelGroup(ctx context.Context, id int) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.DeleteChannelGroup(ctx, id) })
	return err
}

func (b *BreakerClient) SetChannelProfileEnabled(ctx context.Context, profileID, channelID int, enabled bool) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.SetChannelProfileEnabled(ctx, profileID, channelID, enabled) })
	return err
}

func (b *BreakerClient) ListStreams(ctx context.Context, page, pageSize int, providerID int) (*StreamPage, error) {
	return cast[*StreamPage](b.execute(func() (any, error) { return b.client.ListStreams(ctx, page, pageSize, providerID) }))
}

func (b *BreakerClient) ListProviders(ctx context.Context) ([]models.Provider, error) {
	return cast[[]models.Provider](b.execute(func() (any, error) { return b.client.ListProviders(ctx) }))
}

func (b *BreakerClient) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	return cast[*models.Provider](b.execute(func() (any, error) { return b.client.GetProvider(ctx, id) }))
}

func (b *BreakerClient) RefreshProvider(ctx context.Context, id int) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.RefreshProvider(ctx, id) })
	return err
}

func (b *BreakerClient) RefreshAllProviders(ctx context.Context) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.RefreshAllProviders(ctx) })
	return err
}

func (b *BreakerClient) CreateLogo(ctx context.Context, url, name string) (*Logo, error) {
	return cast[*Logo](b.execute(func() (any, error) { return b.client.CreateLogo(ctx, url, name) }))
}

func (b *BreakerClient) FindLogoByURL(ctx context.Context, url string) (*Logo, error) {
	return cast[*Logo](b.execute(func() (any, error) { return b.client.FindLogoByURL(ctx, url) }))
}

func (b *BreakerClient) UploadLogoFile(ctx context.Context, name, filename string, data []byte, mime string) (*Logo, error) {
	return cast[*Logo](b.execute(func() (any, error) { return b.client.UploadLogoFile(ctx, name, filename, data, mime) }))
}

func (b *BreakerClient) ListEPGSources(ctx context.Context) ([]EPGSource, error) {
	return cast[[]EPGSource](b.execute(func() (any, error) { return b.client.ListEPGSources(ctx) }))
}

func (b *BreakerClient) GetEPGData(ctx context.Context, sourceID int, tvgID string) ([]EPGProgram, error) {
	return cast[[]EPGProgram](b.execute(func() (any, error) { return b.client.GetEPGData(ctx, sourceID, tvgID) }))
}

func (b *BreakerClient) GetEPGGrid(ctx context.Context, start, end string) ([]EPGProgram, error) {
	return cast[[]EPGProgram](b.execute(func() (any, error) { return b.client.GetEPGGrid(ctx, start, end) }))
}

func (b *BreakerClient) RefreshEPGSource(ctx context.Context, id int) error {
	_, err := b.execute(func() (any, error) { return nil, b.client.RefreshEPGSource(ctx, id) })
	return err
}

func (b *BreakerClient) GetChannelStats(ctx context.Context) (*ChannelStatsSnapshot, error) {
	return cast[*ChannelStatsSnapshot](b.execute(func() (any, error) { return b.client.GetChannelStats(ctx) }))
}

var _ Client = (*BreakerClient)(nil)
