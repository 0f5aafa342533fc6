package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-portal-api/internal/models"
)

// GormStore keeps each collection as one row of the collection_slots table.
type GormStore struct {
	db       *gorm.DB
	maxBytes int64
}

// NewGormStore constructs a slot store. maxBytes caps a single encoded collection; zero disables the cap.
func NewGormStore(db *gorm.DB, maxBytes int64) *GormStore {
	return &GormStore{db: db, maxBytes: maxBytes}
}

// Migrate creates the slot table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.CollectionSlot{})
}

func (s *GormStore) Load(ctx context.Context, key Key) (Slot, error) {
	var row models.CollectionSlot
	err := s.db.WithContext(ctx).Where("slot_key = ?", key.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Slot{Key: key}, nil
		}
		return Slot{Key: key}, fmt.Errorf("load %s: %w", key, err)
	}

	return Slot{
		Key:       key,
		Revision:  row.Revision,
		Payload:   []byte(row.Payload),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *GormStore) Save(ctx context.Context, write Write) (int64, error) {
	revisions, err := s.SaveAll(ctx, write)
	if err != nil {
		return 0, err
	}
	return revisions[0], nil
}

func (s *GormStore) SaveAll(ctx context.Context, writes ...Write) ([]int64, error) {
	if err := checkQuota(s.maxBytes, writes); err != nil {
		return nil, err
	}

	revisions := make([]int64, len(writes))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, w := range writes {
			revision, err := saveSlot(tx, w)
			if err != nil {
				return err
			}
			revisions[i] = revision
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revisions, nil
}

func saveSlot(tx *gorm.DB, w Write) (int64, error) {
	now := time.Now().UTC()

	if w.ExpectedRevision == 0 {
		row := models.CollectionSlot{
			Key:       w.Key.String(),
			Revision:  1,
			Payload:   datatypes.JSON(w.Payload),
			UpdatedAt: now,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return 0, fmt.Errorf("create %s: %w", w.Key, result.Error)
		}
		if result.RowsAffected == 0 {
			return 0, fmt.Errorf("%s: %w", w.Key, ErrStaleRevision)
		}
		return 1, nil
	}

	next := w.ExpectedRevision + 1
	result := tx.Model(&models.CollectionSlot{}).
		Where("slot_key = ? AND revision = ?", w.Key.String(), w.ExpectedRevision).
		Updates(map[string]interface{}{
			"payload":    datatypes.JSON(w.Payload),
			"revision":   next,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("update %s: %w", w.Key, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%s: %w", w.Key, ErrStaleRevision)
	}
	return next, nil
}
