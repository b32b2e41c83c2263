// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package events is the in-process pub/sub bus for group lifecycle
// events. Subscribers (the websocket hub, metrics) are decoupled from
// the services that publish.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
)

// Topics.
const (
	TopicGroupCreated = "group.created"
	TopicMemberJoined = "group.member.joined"
	TopicGroupExpired = "group.expired"
	TopicFileUploaded = "group.file.uploaded"
)

// GroupEvent is the payload published on every topic.
type GroupEvent struct {
	Type       string    `json:"type"`
	GroupID    string    `json:"groupId"`
	GroupName  string    `json:"groupName,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	FileID     string    `json:"fileId,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Bus wraps a watermill gochannel pub/sub.
type Bus struct {
	pubsub  *gochannel.GoChannel
	metrics *metrics.Metrics
}

// NewBus creates the in-process bus. Publishes never block on slow
// subscribers; each subscriber gets a buffered channel.
func NewBus(m *metrics.Metrics) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logging.NewSlogLogger()),
	)
	return &Bus{pubsub: pubsub, metrics: m}
}

// Publish emits the event on its topic. A marshal failure is a
// programming error and is returned; publish failures after shutdown are
// logged and swallowed so request paths never fail on telemetry.
func (b *Bus) Publish(ctx context.Context, event GroupEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(event.Type, msg); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", event.Type).Msg("Event publish failed")
		return nil
	}

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	}
	return nil
}

// PublishFileUploaded is a convenience wrapper for the upload handler.
func (b *Bus) PublishFileUploaded(ctx context.Context, groupID, fileID, fileName, userID string) {
	_ = b.Publish(ctx, GroupEvent{
		Type:     TopicFileUploaded,
		GroupID:  groupID,
		FileID:   fileID,
		FileName: fileName,
		UserID:   userID,
	})
}

// Subscribe returns a channel of decoded events for the topic. The
// channel closes when ctx is canceled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan GroupEvent, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan GroupEvent, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var event GroupEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logging.Err(err).Str("topic", topic).Msg("Malformed event payload")
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeAll returns a merged channel across all group topics. The
// channel closes when every topic stream ends, whether through ctx
// cancellation or bus shutdown.
func (b *Bus) SubscribeAll(ctx context.Context) (<-chan GroupEvent, error) {
	topics := []string{TopicGroupCreated, TopicMemberJoined, TopicGroupExpired, TopicFileUploaded}

	out := make(chan GroupEvent, 64)
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, err := b.Subscribe(ctx, topic)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range ch {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
