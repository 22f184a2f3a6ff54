// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

//go:build nats

package journal

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// NATSConfig names the external broker a NATSPublisher connects to. It
// mirrors internal/config.NATSConfig without importing it, keeping this
// package free of a dependency on the config layer.
type NATSConfig struct {
	URL    string
	Stream string
}

// NATSPublisher is the external-broker counterpart to Publisher: instead of
// an in-process gochannel bus, events cross a JetStream subject so a second
// process can subscribe. Used only when the nats.enabled setting is on — the
// in-process Publisher remains the default transport.
type NATSPublisher struct {
	pub    *wmnats.Publisher
	sub    *wmnats.Subscriber
	cb     *gobreaker.CircuitBreaker[any]
	stream string
}

// NewNATSPublisher dials cfg.URL and binds to cfg.Stream, wrapping publishes
// in a circuit breaker so a flapping broker degrades the emitting
// engine/prober/tracker loop instead of blocking it (grounded on the
// teacher's internal/eventprocessor.Publisher).
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("journal: create nats publisher: %w", err)
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:            cfg.URL,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmnats.NATSMarshaler{},
		SubscribersCount: 1,
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("journal: create nats subscriber: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "journal.nats_publish",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &NATSPublisher{pub: pub, sub: sub, cb: cb, stream: cfg.Stream}, nil
}

// Publish marshals ev the same way Publisher does and sends it over the
// configured JetStream subject, through the circuit breaker.
func (p *NATSPublisher) Publish(ev Event) error {
	body, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	msg := newEventMessage(ev.ID, body, ev.Type)
	_, err = p.cb.Execute(func() (any, error) {
		return nil, p.pub.Publish(p.stream+"."+string(ev.Type), msg)
	})
	if err != nil {
		return fmt.Errorf("journal: publish to nats: %w", err)
	}
	return nil
}

// PublishMessage forwards a message already produced by the in-process
// Publisher (same event_type metadata, same payload) onto the JetStream
// subject, through the circuit breaker. Used by the event bridge that mirrors
// the in-process bus onto the external broker so a second process can
// subscribe.
func (p *NATSPublisher) PublishMessage(msg *message.Message) error {
	eventType := msg.Metadata.Get("event_type")
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.pub.Publish(p.stream+"."+eventType, msg)
	})
	if err != nil {
		return fmt.Errorf("journal: forward message to nats: %w", err)
	}
	return nil
}

// Close releases both the publisher and subscriber NATS connections.
func (p *NATSPublisher) Close() error {
	pubErr := p.pub.Close()
	subErr := p.sub.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
