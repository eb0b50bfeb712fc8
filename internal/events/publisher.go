// Package events publishes watch-state change events to NATS JetStream.
// Other household devices and analytics consumers subscribe to these subjects.
package events

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects for every event the service emits.
const (
	SubjectProfileCreated   = "stremur.profile.created"
	SubjectProfileUpdated   = "stremur.profile.updated"
	SubjectProfileDeleted   = "stremur.profile.deleted"
	SubjectHistoryUpserted  = "stremur.history.upserted"
	SubjectHistoryDeleted   = "stremur.history.deleted"
	SubjectHistoryCleared   = "stremur.history.cleared"
	SubjectWatchlistAdded   = "stremur.watchlist.added"
	SubjectWatchlistRemoved = "stremur.watchlist.removed"
)

// StreamName is the JetStream stream capturing all subjects above.
const StreamName = "STREMUR"

// Event is the envelope sent on every subject.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	ProfileID  string         `json:"profile_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher sends events fire-and-forget. A nil *Publisher is a valid no-op.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
	now func() time.Time
}

// New creates a Publisher on an existing JetStream context; js=nil gives a no-op.
func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// Publish enqueues an event. Failures are logged and never returned.
func (p *Publisher) Publish(subject string, profileID uuid.UUID, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	id, err := uuid.NewV4()
	if err != nil {
		p.log.Warn("events: id generation failed", zap.Error(err))
		return
	}
	ev := Event{
		EventID:    id.String(),
		EventName:  subject,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	if profileID != uuid.Nil {
		ev.ProfileID = profileID.String()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// EnsureStream creates the stream if the server does not know it yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"stremur.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}
