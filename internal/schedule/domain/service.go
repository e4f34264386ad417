// Package domain defines the inspection scheduling contract.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"gorm.io/gorm"
)

// Service keeps each mold's next inspection marker aligned with the
// milestone catalog. AdvanceNextInspectionTx runs inside the caller's
// recording transaction so the marker moves atomically with the counter.
// NextDue is a read-side lookup of the milestone a mold is heading for;
// it returns nil when the mold is past the whole catalog.
type Service interface {
	AdvanceNextInspectionTx(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, crossedShots int64) error
	NextDue(ctx context.Context, moldID snowflake.ID) (*threshold.AbsoluteMilestone, error)
}

var (
	ErrInvalidMold  = errors.New("invalid_mold")
	ErrMoldNotFound = errors.New("mold_not_found")
)
