package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-jwt-auth"
	"github.com/goliatone/go-print"
)

const (
	// MetadataKeyTokenKind stores the lifecycle kind of lifecycle events.
	MetadataKeyTokenKind = "token_kind"
	// MetadataKeyInvitedBy is read as the actor of invitation events.
	MetadataKeyInvitedBy = "invited_by"
)

// Object types assigned when no override is configured.
const (
	ObjectUser    = "user"
	ObjectSession = "session"
)

// Normalized is the flat record handed to audit pipelines.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*mapper)

type mapper struct {
	channel    string
	objectType string
	actor      string
	objectID   func(auth.ActivityEvent) string
	only       map[auth.ActivityEventType]bool
	now        func() time.Time
}

func newMapper(opts []Option) *mapper {
	m := &mapper{
		channel: "auth",
		actor:   "system",
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// WithDefaultChannel sets the channel of every record.
func WithDefaultChannel(channel string) Option {
	return func(m *mapper) { m.channel = strings.TrimSpace(channel) }
}

// WithDefaultObjectType forces the object type of every record.
func WithDefaultObjectType(objectType string) Option {
	return func(m *mapper) { m.objectType = strings.TrimSpace(objectType) }
}

// WithObjectIDResolver overrides the object id, which defaults to the user id.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(m *mapper) { m.objectID = resolver }
}

// WithActorFallback sets the actor used for events that carry no user.
func WithActorFallback(actorID string) Option {
	return func(m *mapper) { m.actor = strings.TrimSpace(actorID) }
}

// WithEventTypes restricts Sink and LogSink to the listed event types.
func WithEventTypes(types ...auth.ActivityEventType) Option {
	return func(m *mapper) {
		m.only = make(map[auth.ActivityEventType]bool, len(types))
		for _, t := range types {
			m.only[t] = true
		}
	}
}

// Normalize converts an auth.ActivityEvent into a Normalized record.
// Invitation events are attributed to the inviter when known.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	return newMapper(opts).normalize(event)
}

func (m *mapper) normalize(event auth.ActivityEvent) Normalized {
	userID := strings.TrimSpace(event.UserID)

	actor := metadataString(event.Metadata, MetadataKeyInvitedBy)
	if actor == "" {
		actor = userID
	}
	if actor == "" {
		actor = m.actor
	}

	objectID := userID
	if m.objectID != nil {
		objectID = strings.TrimSpace(m.objectID(event))
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = m.now().UTC()
	}

	return Normalized{
		ActorID:    actor,
		Verb:       string(event.EventType),
		ObjectType: m.objectTypeOf(event),
		ObjectID:   objectID,
		Channel:    m.channel,
		Metadata:   metadataOf(event),
		OccurredAt: occurredAt,
	}
}

// objectTypeOf names what the event acted on: a session, a lifecycle token
// such as "invitation_token", or the user record.
func (m *mapper) objectTypeOf(event auth.ActivityEvent) string {
	if m.objectType != "" {
		return m.objectType
	}

	switch event.EventType {
	case auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLogout,
		auth.ActivityEventSessionEvicted:
		return ObjectSession
	}

	if event.Kind != "" {
		return event.Kind.TokenField()
	}
	return ObjectUser
}

func (m *mapper) accepts(event auth.ActivityEvent) bool {
	return m.only == nil || m.only[event.EventType]
}

// Sink adapts fn into an auth.ActivitySink that receives normalized records.
func Sink(fn func(context.Context, Normalized) error, opts ...Option) auth.ActivitySink {
	m := newMapper(opts)
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if fn == nil || !m.accepts(event) {
			return nil
		}
		return fn(ctx, m.normalize(event))
	})
}

// LogSink writes every normalized record to logger.
func LogSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	return Sink(func(_ context.Context, record Normalized) error {
		if logger != nil {
			logger.Info("activity %s: %s", record.Verb, print.MaybePrettyJSON(record))
		}
		return nil
	}, opts...)
}

func metadataOf(event auth.ActivityEvent) map[string]any {
	if len(event.Metadata) == 0 && event.Kind == "" {
		return nil
	}

	out := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		out[k] = v
	}
	if event.Kind != "" {
		out[MetadataKeyTokenKind] = string(event.Kind)
	}
	return out
}

func metadataString(metadata map[string]any, key string) string {
	s, _ := metadata[key].(string)
	return strings.TrimSpace(s)
}
