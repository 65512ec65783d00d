package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-runview/pkg/activity"
	"github.com/goliatone/go-runview/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildVisibilityChangedEvent(activity.ViewEventInput{
		ActorID:    actorID.String(),
		UserID:     userID.String(),
		TenantID:   tenantID.String(),
		Namespace:  "executions",
		Action:     "toggle",
		ItemIDs:    []string{"exec_7"},
		Channel:    "dashboard",
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity mapping: %+v", record)
	}
	if record.Verb != activity.VerbVisibilityChanged || record.ObjectType != "runview.visibility" || record.ObjectID != "executions" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "dashboard" {
		t.Fatalf("expected channel dashboard got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["action"] != "toggle" {
		t.Fatalf("expected metadata passthrough got %v", record.Data["action"])
	}
}

func TestHookNotifyKeepsNonUUIDActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, ObjectPrefix: "dashboard"}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbSettingsReset,
		ActorID:    "svc-sidebar",
		ObjectType: "runview.settings",
		ObjectID:   "injections",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ActorID != uuid.Nil {
		t.Fatalf("expected nil actor uuid, got %s", record.ActorID)
	}
	if record.Data["actor_ref"] != "svc-sidebar" {
		t.Fatalf("expected actor_ref metadata, got %v", record.Data)
	}
	if record.ObjectType != "dashboard.runview.settings" {
		t.Fatalf("expected prefixed object type, got %q", record.ObjectType)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyPropagatesSinkError(t *testing.T) {
	boom := errors.New("sink down")
	hook := usersink.Hook{Sink: &recordingSink{err: boom}}
	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbColorsChanged,
		ObjectType: "runview.colors",
		ObjectID:   "injections",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
