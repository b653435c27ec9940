// Package bridge contains the domain models for the bridge coordinator.
package bridge

import "time"

// LockRecord describes one custody event of an original asset awaiting
// eventual release. Records are append-only: after creation only the
// Released flag ever changes, and only once.
type LockRecord struct {
	ID         uint64     `json:"id"`
	Asset      string     `json:"asset"`
	Owner      string     `json:"owner"`
	Amount     uint64     `json:"amount"`
	Released   bool       `json:"released"`
	CreatedAt  time.Time  `json:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// EventType identifies a bridge state change.
type EventType string

const (
	EventAssetLocked          EventType = "asset.locked"
	EventRepresentationMinted EventType = "representation.minted"
	EventRepresentationBurned EventType = "representation.burned"
	EventAssetReleased        EventType = "asset.released"
)

// Event is the auditable notification emitted for every state change. It is
// the sole mechanism by which an off-chain operator or watcher learns that
// action is needed on the other ledger.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	LockID    uint64    `json:"lock_id,omitempty"`
	Asset     string    `json:"asset"`
	Account   string    `json:"account"`
	Amount    uint64    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
