package database

import (
	"time"

	"gorm.io/gorm"
)

// NVEntry is one key of a modem instance's non-volatile store.
type NVEntry struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	Store     string    `gorm:"uniqueIndex:idx_nv_store_name;size:64;not null" json:"store"`
	Name      string    `gorm:"uniqueIndex:idx_nv_store_name;size:64;not null" json:"name"`
	Value     string    `gorm:"size:256" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for NVEntry
func (NVEntry) TableName() string {
	return "nv_entries"
}

// CallRecord is a finished voice call.
type CallRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Instance  int       `gorm:"index;not null" json:"instance"`
	CallID    int       `gorm:"not null" json:"call_id"`
	Direction string    `gorm:"size:8;not null" json:"direction"` // mo or mt
	Number    string    `gorm:"index;size:20" json:"number"`
	Cause     int       `gorm:"not null" json:"cause"`
	Remote    bool      `json:"remote"`
	Answered  bool      `json:"answered"`
	Duration  float64   `gorm:"not null" json:"duration"` // seconds between creation and release
	StartTime time.Time `gorm:"index;not null" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for CallRecord
func (CallRecord) TableName() string {
	return "call_records"
}

// BeforeCreate fills in missing timestamps and the duration.
func (c *CallRecord) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.EndTime.IsZero() {
		c.EndTime = now
	}
	if c.StartTime.IsZero() {
		c.StartTime = c.EndTime
	}
	if c.Duration == 0 {
		c.Duration = c.EndTime.Sub(c.StartTime).Seconds()
	}
	return nil
}
