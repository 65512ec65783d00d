package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the run view store.
const (
	VerbVisibilityChanged = "runview.visibility.changed"
	VerbColorsChanged     = "runview.colors.changed"
	VerbSettingsPatched   = "runview.settings.patched"
	VerbSettingsReset     = "runview.settings.reset"
)

// ViewEventInput describes a store mutation for one namespace.
type ViewEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Namespace  string
	Action     string
	ItemIDs    []string
	Fields     []string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildVisibilityChangedEvent covers initialize, show, hide, toggle and prune.
func BuildVisibilityChangedEvent(input ViewEventInput) Event {
	return buildViewEvent(VerbVisibilityChanged, "runview.visibility", input)
}

// BuildColorsChangedEvent covers per-item color overrides and randomization.
func BuildColorsChangedEvent(input ViewEventInput) Event {
	return buildViewEvent(VerbColorsChanged, "runview.colors", input)
}

// BuildSettingsPatchedEvent records which table settings fields changed.
func BuildSettingsPatchedEvent(input ViewEventInput) Event {
	return buildViewEvent(VerbSettingsPatched, "runview.settings", input)
}

// BuildSettingsResetEvent records a reset to built-in defaults.
func BuildSettingsResetEvent(input ViewEventInput) Event {
	return buildViewEvent(VerbSettingsReset, "runview.settings", input)
}

func buildViewEvent(verb, objectType string, input ViewEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Action != "" {
		metadata = ensureMetadata(metadata)
		metadata["action"] = input.Action
	}
	if len(input.ItemIDs) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["item_ids"] = append([]string{}, input.ItemIDs...)
		metadata["item_count"] = len(input.ItemIDs)
	}
	if len(input.Fields) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["fields"] = append([]string{}, input.Fields...)
	}

	objectID := strings.TrimSpace(input.Namespace)
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
