package workflow

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Load reads the row with the given id into dest, converting a missing row
// into a *NotFoundError.
func Load(tx *gorm.DB, entity Entity, id string, dest interface{}) error {
	if err := tx.Where("id = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: entity, ID: id}
		}
		return fmt.Errorf("%s: get %s: %w", entity, id, err)
	}
	return nil
}

// Apply validates from → to against the entity's table and persists the
// change together with updates, guarded by the status the caller read.
// If another writer moved the row first, the fresh status is reported in an
// *InvalidTransitionError and nothing is written.
func Apply(tx *gorm.DB, model interface{}, entity Entity, id, from, to string, updates map[string]interface{}) error {
	if err := Check(entity, from, to); err != nil {
		return err
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := tx.Model(model).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%s: update %s: %w", entity, id, result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var current struct{ Status string }
	if err := tx.Model(model).Select("status").Where("id = ?", id).Take(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: entity, ID: id}
		}
		return fmt.Errorf("%s: reload %s: %w", entity, id, err)
	}
	if err := Check(entity, current.Status, to); err != nil {
		return err
	}
	return &ConflictError{Entity: entity, ID: id, Reason: fmt.Sprintf("status changed concurrently from %s to %s", from, current.Status)}
}
