package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopfloor/moldtrack/internal/clock"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Clock clock.Clock
}

type repo struct {
	clock clock.Clock
}

func NewRepository(p Params) productiondomain.Repository {
	return &repo{clock: p.Clock}
}

// GetForUpdate reads the counter snapshot under a row lock. sqlite has no
// FOR UPDATE; its single-writer transactions give the same serialization.
func (r *repo) GetForUpdate(ctx context.Context, tx *gorm.DB, moldID snowflake.ID) (*productiondomain.LockedMold, error) {
	query := `SELECT id, cavity_count, current_shots, target_shots FROM molds WHERE id = ? AND active`
	if tx.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var row productiondomain.LockedMold
	result := tx.WithContext(ctx).Raw(query, moldID).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) SetShots(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, shots int64) error {
	return tx.WithContext(ctx).
		Exec(`UPDATE molds SET current_shots = ?, updated_at = ? WHERE id = ?`,
			shots, r.clock.Now(), moldID).Error
}

func (r *repo) AppendEntry(ctx context.Context, tx *gorm.DB, entry *productiondomain.ProductionEntry) error {
	return tx.WithContext(ctx).Create(entry).Error
}
