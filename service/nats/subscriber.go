package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// SubscribeOptions configures a JetStream consumer.
type SubscribeOptions struct {
	Subject string
	// Durable names a consumer that survives restarts. Empty creates an
	// ephemeral consumer that starts at new messages.
	Durable string
	// Replay delivers all retained messages instead of only new ones.
	Replay bool
}

// Subscribe consumes messages until ctx is done. Messages are acked when
// handler returns nil and nak'd otherwise.
func Subscribe(ctx context.Context, js jetstream.JetStream, opts SubscribeOptions, handler func(jetstream.Msg) error) error {
	cfg := jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if opts.Replay {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := handler(msg); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
