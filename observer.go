package runview

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	ChangeInitialize     ChangeKind = "initialize"
	ChangeVisibility     ChangeKind = "visibility"
	ChangeColors         ChangeKind = "colors"
	ChangeSettings       ChangeKind = "settings"
	ChangeReset          ChangeKind = "reset"
	ChangePrune          ChangeKind = "prune"
	ChangePanel          ChangeKind = "panel"
	ChangePageSize       ChangeKind = "page_size"
	ChangeLastNamespace  ChangeKind = "last_namespace"
	ChangeSelection      ChangeKind = "selection"
	ChangeSearchOverride ChangeKind = "search_override"
	ChangeLoadedItems    ChangeKind = "loaded_items"
)

// Change describes one applied mutation. Persisted is false for UI-only state
// that never reaches durable storage.
type Change struct {
	Kind      ChangeKind
	Namespace Namespace
	Persisted bool
	Revision  uint64
}

// Observer is notified after every mutation, outside the store lock, on the
// goroutine that performed the mutation.
type Observer interface {
	StoreChanged(store *Store, change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(store *Store, change Change)

// StoreChanged implements Observer.
func (f ObserverFunc) StoreChanged(store *Store, change Change) {
	if f != nil {
		f(store, change)
	}
}
