package models

import (
	"time"

	"gorm.io/datatypes"
)

// CollectionSlot is the durable row behind one named collection.
type CollectionSlot struct {
	Key       string         `gorm:"column:slot_key;primaryKey;size:191" json:"key"`
	Revision  int64          `gorm:"not null;default:0" json:"revision"`
	Payload   datatypes.JSON `gorm:"type:text" json:"payload"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName pins the table name used by the slot store.
func (CollectionSlot) TableName() string { return "collection_slots" }
