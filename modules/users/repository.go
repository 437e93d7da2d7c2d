package users

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no username is stored for an IP.
var ErrNotFound = errors.New("user not found")

// Repository provides access to user storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new user repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores record, replacing the username of an existing IP.
func (r *Repository) Upsert(record *UserRecord) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// FindByIP retrieves the record for ip.
func (r *Repository) FindByIP(ip string) (*UserRecord, error) {
	var record UserRecord
	if err := r.db.First(&record, "ip = ?", ip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &record, nil
}

// Count returns the number of stored records.
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&UserRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
