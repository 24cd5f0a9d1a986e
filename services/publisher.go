package services

import (
	"context"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"seat-waitroom/utils"
)

// Publisher pushes queue events to waiting clients. Strictly best-effort:
// a publish failure is logged and swallowed, never surfaced to the caller,
// because the status endpoint remains the source of truth.
type Publisher interface {
	PublishPublic(ctx context.Context, scope string, event any)
	PublishMember(ctx context.Context, scope, memberID string, event any)
}

type pubnubPublisher struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

// NewPubNubPublisher wraps a PubNub client behind the circuit breaker so
// a dead broker cannot stall request handlers.
func NewPubNubPublisher(pn *pubnub.PubNub) Publisher {
	return &pubnubPublisher{
		pn:      pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (p *pubnubPublisher) PublishPublic(ctx context.Context, scope string, event any) {
	p.publish(publicChannel(scope), event)
}

func (p *pubnubPublisher) PublishMember(ctx context.Context, scope, memberID string, event any) {
	p.publish(memberChannel(scope, memberID), event)
}

func (p *pubnubPublisher) publish(channel string, event any) {
	err := p.breaker.Execute(func() error {
		_, _, err := p.pn.Publish().
			Channel(channel).
			Message(event).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("pubnub publish dropped", "channel", channel, "error", err)
	}
}

// NopPublisher discards every event; used when PubNub keys are not
// configured and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishPublic(ctx context.Context, scope string, event any)           {}
func (NopPublisher) PublishMember(ctx context.Context, scope, memberID string, event any) {}
