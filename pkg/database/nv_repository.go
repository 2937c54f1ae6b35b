package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NVRepository handles NV entry database operations
type NVRepository struct {
	db *gorm.DB
}

// NewNVRepository creates a new NV repository
func NewNVRepository(db *gorm.DB) *NVRepository {
	return &NVRepository{db: db}
}

// Load returns every entry of a store as a map. A store without rows yields
// an empty map and no error.
func (r *NVRepository) Load(store string) (map[string]string, error) {
	var entries []NVEntry
	if err := r.db.Where("store = ?", store).Find(&entries).Error; err != nil {
		return nil, err
	}
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Name] = e.Value
	}
	return values, nil
}

// Save upserts all values of a store in one transaction.
func (r *NVRepository) Save(store string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now()
	entries := make([]NVEntry, 0, len(values))
	for name, value := range values {
		entries = append(entries, NVEntry{Store: store, Name: name, Value: value, UpdatedAt: now})
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entries).Error
	})
}

// Delete removes all entries of a store.
func (r *NVRepository) Delete(store string) error {
	return r.db.Where("store = ?", store).Delete(&NVEntry{}).Error
}
