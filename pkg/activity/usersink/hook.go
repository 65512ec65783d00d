package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-runview/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts run view activity events to a go-users ActivitySink so that
// visibility and layout changes show up in the user's activity feed.
type Hook struct {
	Sink usertypes.ActivitySink
	// ObjectPrefix, when set, is prepended to the record object type.
	ObjectPrefix string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	objectType := normalized.ObjectType
	if prefix := strings.TrimSpace(h.ObjectPrefix); prefix != "" {
		objectType = prefix + "." + objectType
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: objectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       cloneMap(normalized.Metadata),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if raw := strings.TrimSpace(normalized.ActorID); raw != "" && record.ActorID == uuid.Nil {
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data["actor_ref"] = raw
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
