package codegen

import (
	"context"
	"fmt"

	"github.com/zulandar/labyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableSequence keeps counters in the code_sequences table. Each Next is a
// single increment-and-fetch inside the caller's transaction, so two
// creations can never read the same counter.
type TableSequence struct{}

// Next implements Sequence.
func (TableSequence) Next(ctx context.Context, tx *gorm.DB, prefix string, year int) (int64, error) {
	tx = tx.WithContext(ctx)

	n, ok, err := increment(tx, prefix, year)
	if err != nil {
		return 0, err
	}
	if ok {
		return n, nil
	}

	// First code of the year for this prefix: seed from whatever was issued
	// before the sequence row existed, then retry the increment.
	last, err := LastIssued(tx, prefix, year)
	if err != nil {
		return 0, err
	}
	seed := models.CodeSequence{Prefix: prefix, Year: year, Value: last}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("codegen: seed %s/%d: %w", prefix, year, err)
	}

	n, ok, err = increment(tx, prefix, year)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("codegen: sequence %s/%d missing after seed", prefix, year)
	}
	return n, nil
}

func increment(tx *gorm.DB, prefix string, year int) (int64, bool, error) {
	result := tx.Model(&models.CodeSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Update("value", gorm.Expr("value + 1"))
	if result.Error != nil {
		return 0, false, fmt.Errorf("codegen: increment %s/%d: %w", prefix, year, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}

	var seq models.CodeSequence
	if err := tx.Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error; err != nil {
		return 0, false, fmt.Errorf("codegen: read %s/%d: %w", prefix, year, err)
	}
	return seq.Value, true, nil
}
