package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher announces workflow actions once the backend has accepted them.
type Publisher interface {
	PublishAction(ctx context.Context, evt ActionEvent) error
}

// ActionEvent records one accepted status mutation.
type ActionEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Domain    string    `json:"domain"`
	EntityID  string    `json:"entity_id"`
	// Parent is the owning record: the submission of a schedule slot or the kind of a batch.
	Parent    string    `json:"parent,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id"`
	// ActorKey is the acting token's snapshot key, empty for anonymous actors.
	ActorKey  string    `json:"actor_key,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	// Origin identifies the publishing process so it can skip its own events.
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewActionEvent(domain, entityID, from, to, actorID, reason string) ActionEvent {
	return ActionEvent{
		ID:        uuid.New(),
		Type:      domain + ".status_changed",
		Domain:    domain,
		EntityID:  entityID,
		From:      from,
		To:        to,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// BrokerPublisher publishes action events on one broker channel, stamped with origin.
type BrokerPublisher struct {
	broker  Broker
	channel string
	origin  string
}

func NewBrokerPublisher(broker Broker, channel, origin string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, channel: channel, origin: origin}
}

func (p *BrokerPublisher) PublishAction(ctx context.Context, evt ActionEvent) error {
	if evt.Origin == "" {
		evt.Origin = p.origin
	}
	return p.broker.Publish(ctx, p.channel, evt)
}

// LogPublisher writes action events to the log only.
type LogPublisher struct {
	Logger *zerolog.Logger
}

func (p LogPublisher) PublishAction(_ context.Context, evt ActionEvent) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.Info().
		Str("event_id", evt.ID.String()).
		Str("domain", evt.Domain).
		Str("entity_id", evt.EntityID).
		Str("from", evt.From).
		Str("to", evt.To).
		Str("actor_id", evt.ActorID).
		Msg("status changed")
	return nil
}
