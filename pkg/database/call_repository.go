package database

import (
	"time"

	"gorm.io/gorm"
)

// CallRecordRepository handles call history database operations
type CallRecordRepository struct {
	db *gorm.DB
}

// NewCallRecordRepository creates a new call history repository
func NewCallRecordRepository(db *gorm.DB) *CallRecordRepository {
	return &CallRecordRepository{db: db}
}

// Create adds a new call record
func (r *CallRecordRepository) Create(rec *CallRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent calls of one instance
func (r *CallRecordRepository) GetRecent(instance, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Where("instance = ?", instance).
		Order("end_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetByNumber retrieves calls to or from a number across all instances
func (r *CallRecordRepository) GetByNumber(number string, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Where("number = ?", number).
		Order("end_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteOlderThan deletes call records that ended before the given time
func (r *CallRecordRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("end_time < ?", before).Delete(&CallRecord{})
	return result.RowsAffected, result.Error
}
