package activitymap

import (
	"strings"
	"time"

	"github.com/gyber/go-custody"
)

const (
	// MetadataKeyActorType stores the actor type derived from custody.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const defaultActorID = "system"

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Outcome    string         `json:"outcome"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// Normalize converts a custody.ActivityEvent into the normalized shape. The
// channel and object type come from the event type prefix, so wallet events
// land on the wallet channel with the address as object id.
func Normalize(event custody.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel, objectType := classify(event.EventType)
	if options.channel != "" {
		channel = options.channel
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			options.actorFallback,
		),
		Verb:       string(event.EventType),
		Outcome:    Outcome(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID(event, objectType),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel forces the channel for every normalized record.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the final actor-id fallback when actor/user ids are empty.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Outcome reports failure for events that record a rejected attempt
func Outcome(eventType custody.ActivityEventType) string {
	switch eventType {
	case custody.ActivityEventLoginFailure, custody.ActivityEventTransferFailed:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

func classify(eventType custody.ActivityEventType) (string, string) {
	prefix, _, _ := strings.Cut(string(eventType), ".")
	switch prefix {
	case "wallet":
		return "wallet", "wallet"
	case "user":
		return "user", "user"
	default:
		return "auth", "user"
	}
}

func objectID(event custody.ActivityEvent, objectType string) string {
	if objectType == "wallet" {
		if address, ok := event.Metadata["address"].(string); ok && address != "" {
			return address
		}
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event custody.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
