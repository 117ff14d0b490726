// pkg/models/kv_entry.go
package models

import "time"

// KVEntry is one slot of the local key-value store when it is backed by Postgres.
type KVEntry struct {
	Key       string    `json:"key" gorm:"primaryKey;type:varchar(255)"`
	Value     []byte    `json:"value" gorm:"type:bytea;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for KVEntry
func (KVEntry) TableName() string {
	return "kv_entries"
}
