// Package activitymap flattens lifecycle telemetry into the record shape
// activity feeds ingest: a short past-tense verb, the affected account as
// the object, and the transition detail (statuses, reason) as first-class
// fields rather than free-form metadata.
package activitymap

import (
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

const (
	defaultChannel    = "accounts"
	defaultObjectType = "account"
	defaultActorID    = "system"

	// reasonKey is where the lifecycle manager stashes the transition
	// reason inside ActivityEvent.Metadata. Normalize lifts it out.
	reasonKey = "reason"
)

// Normalized is the flattened activity record. Metadata only carries the
// extra context the caller attached to the transition; everything the
// lifecycle itself knows travels as a named field.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	ActorType  string         `json:"actor_type,omitempty"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

var defaultVerbs = map[accounts.ActivityEventType]string{
	accounts.ActivityEventAccountRegistered:  "registered",
	accounts.ActivityEventAccountDeactivated: "deactivated",
	accounts.ActivityEventAccountReactivated: "reactivated",
}

// Option customizes normalization behavior.
type Option func(*normalizer)

type normalizer struct {
	channel       string
	objectType    string
	actorFallback string
	verbs         map[accounts.ActivityEventType]string
	objectID      func(accounts.ActivityEvent) string
}

// Normalize converts a committed lifecycle event into a Normalized record.
func Normalize(event accounts.ActivityEvent, opts ...Option) Normalized {
	n := normalizer{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&n)
		}
	}
	return n.apply(event)
}

func (n normalizer) apply(event accounts.ActivityEvent) Normalized {
	record := Normalized{
		ActorID:    strings.TrimSpace(event.Actor.ID),
		ActorType:  strings.TrimSpace(event.Actor.Type),
		Verb:       n.verbFor(event.EventType),
		ObjectType: n.objectType,
		ObjectID:   n.objectIDFor(event),
		Channel:    n.channel,
		FromStatus: string(event.FromStatus),
		ToStatus:   string(event.ToStatus),
		OccurredAt: event.OccurredAt,
	}

	if record.ActorID == "" {
		record.ActorID = n.actorFallback
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}

	record.Reason, record.Metadata = liftReason(event.Metadata)
	return record
}

func (n normalizer) verbFor(eventType accounts.ActivityEventType) string {
	if verb, ok := n.verbs[eventType]; ok {
		return verb
	}
	if verb, ok := defaultVerbs[eventType]; ok {
		return verb
	}
	// Unknown event types degrade to their last dotted segment, so
	// "account.lifecycle.suspended" still reads as "suspended".
	raw := string(eventType)
	if idx := strings.LastIndex(raw, "."); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}

func (n normalizer) objectIDFor(event accounts.ActivityEvent) string {
	if n.objectID != nil {
		return strings.TrimSpace(n.objectID(event))
	}
	return strings.TrimSpace(event.AccountID)
}

// liftReason pulls the transition reason out of the event metadata and
// returns the remainder as a fresh map, leaving the input untouched.
func liftReason(meta map[string]any) (string, map[string]any) {
	if len(meta) == 0 {
		return "", nil
	}

	reason := ""
	rest := make(map[string]any, len(meta))
	for key, value := range meta {
		if key == reasonKey {
			if s, ok := value.(string); ok {
				reason = s
				continue
			}
		}
		rest[key] = value
	}

	if len(rest) == 0 {
		rest = nil
	}
	return reason, rest
}

// WithDefaultChannel sets the channel stamped on normalized records.
func WithDefaultChannel(channel string) Option {
	return func(n *normalizer) {
		n.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type stamped on normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(n *normalizer) {
		n.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from the event.
func WithObjectIDResolver(resolver func(accounts.ActivityEvent) string) Option {
	return func(n *normalizer) {
		n.objectID = resolver
	}
}

// WithActorFallback sets the actor id used when the event carries none.
func WithActorFallback(actorID string) Option {
	return func(n *normalizer) {
		n.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithVerb maps an event type to a custom verb, overriding the default
// registered/deactivated/reactivated table.
func WithVerb(eventType accounts.ActivityEventType, verb string) Option {
	return func(n *normalizer) {
		if n.verbs == nil {
			n.verbs = map[accounts.ActivityEventType]string{}
		}
		n.verbs[eventType] = strings.TrimSpace(verb)
	}
}
