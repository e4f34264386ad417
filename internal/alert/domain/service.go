package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"github.com/shopfloor/moldtrack/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAlertsRequest struct {
	MoldID    string `form:"mold_id"`
	Status    string `form:"status"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListAlertsResponse struct {
	pagination.PageInfo
	Alerts []Alert `json:"alerts"`
}

// Service raises and manages milestone alerts. The RaiseTx methods run
// inside the caller's transaction so an alert failure rolls back the
// counter update that caused it, and vice versa. RaiseInspectionAlertTx
// returns nil without error when an active alert for the same
// mold+milestone already exists.
type Service interface {
	RaiseInspectionAlertTx(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, crossing threshold.Crossing, newShots int64) (*Alert, error)
	RaiseProgressAlertTx(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, crossing threshold.Crossing, newShots, targetShots int64) (*Alert, error)
	List(ctx context.Context, req ListAlertsRequest) (ListAlertsResponse, error)
	Resolve(ctx context.Context, alertID string) (*Alert, error)
}

var (
	ErrInvalidAlert    = errors.New("invalid_alert")
	ErrInvalidMold     = errors.New("invalid_mold")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidCrossing = errors.New("invalid_crossing")
	ErrAlertNotFound   = errors.New("alert_not_found")
	ErrAlreadyResolved = errors.New("alert_already_resolved")
)
