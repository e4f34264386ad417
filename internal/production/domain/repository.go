package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LockedMold is the row-locked counter snapshot read at the start of the
// recording transaction.
type LockedMold struct {
	ID           snowflake.ID
	CavityCount  int
	CurrentShots int64
	TargetShots  *int64
}

// Repository is the transaction-scoped persistence surface of recording.
// Every method takes the caller's tx; GetForUpdate holds a row lock on the
// mold until the transaction ends, serializing concurrent recorders.
type Repository interface {
	GetForUpdate(ctx context.Context, tx *gorm.DB, moldID snowflake.ID) (*LockedMold, error)
	SetShots(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, shots int64) error
	AppendEntry(ctx context.Context, tx *gorm.DB, entry *ProductionEntry) error
}
