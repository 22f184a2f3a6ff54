// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package journal

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// topic is the single in-process channel every event is published to;
// subscribers filter by EventType themselves. A durable, multi-topic bus is
// the external journal writer's concern, not this package's.
const topic = "dispatchctl.events"

// Publisher fans domain events out to in-process subscribers (the
// notification sink, a future journal writer) over a Watermill gochannel
// pub/sub — no external broker, since nothing in this spec requires one.
type Publisher struct {
	pubsub *gochannel.GoChannel
}

// NewPublisher builds a Publisher backed by an unbuffered, non-persistent
// gochannel bus.
func NewPublisher() *Publisher {
	return &Publisher{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// Publish encodes ev and sends it to every current subscriber. Publish never
// blocks on a slow subscriber — gochannel's default config drops to
// subscribers that aren't keeping up rather than back-pressuring the
// emitting pipeline/prober/tracker loop.
func (p *Publisher) Publish(ev Event) error {
	body, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	return p.pubsub.Publish(topic, newEventMessage(ev.ID, body, ev.Type))
}

func marshalEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal event: %w", err)
	}
	return body, nil
}

func newEventMessage(id string, body []byte, eventType EventType) *message.Message {
	if id == "" {
		id = uuid.NewString()
	}
	msg := message.NewMessage(id, body)
	msg.Metadata.Set("event_type", string(eventType))
	return msg
}

// Subscribe returns a channel of raw messages for every published event;
// callers decode the payload themselves and filter by the event_type
// metadata key.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

// Close releases the underlying pub/sub and closes all subscriber channels.
func (p *Publisher) Close() error {
	return p.pubsub.Close()
}
