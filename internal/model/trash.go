package model

import (
	"encoding/json"
	"time"
)

// TrashItemType names the entity type a trash entry snapshots.
type TrashItemType string

const (
	TrashItemMessage TrashItemType = "message"
)

// TrashEntry is a snapshot taken before a hard delete. Restoring recreates
// the entity from Snapshot and removes the entry; a restore that finds the
// original id re-occupied is rejected.
type TrashEntry struct {
	ID         string          `json:"id"`
	ItemType   TrashItemType   `json:"item_type"`
	OriginalID string          `json:"original_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
	DeletedBy  string          `json:"deleted_by"`
	DeletedAt  time.Time       `json:"deleted_at"`
}
