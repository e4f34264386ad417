package domain

import (
	"context"
	"errors"

	"github.com/shopfloor/moldtrack/pkg/db/pagination"
)

type RecordProductionRequest struct {
	MoldID       string         `json:"-"`
	ProducedDate string         `json:"produced_date"`
	Shift        string         `json:"shift"`
	Quantity     int64          `json:"quantity"`
	RecordedBy   string         `json:"recorded_by"`
	Note         string         `json:"note"`
	Metadata     map[string]any `json:"metadata"`
}

// MoldSnapshot is the post-recording view of the counter returned to the
// caller, so shop-floor clients can refresh without a second read.
type MoldSnapshot struct {
	MoldID              string `json:"mold_id"`
	CurrentShots        int64  `json:"current_shots"`
	TargetShots         *int64 `json:"target_shots"`
	ProgressPercent     *int64 `json:"progress_percent"`
	NextInspectionShots *int64 `json:"next_inspection_shots"`
}

type RecordProductionResponse struct {
	Entry     ProductionEntry `json:"entry"`
	Mold      MoldSnapshot    `json:"mold"`
	Crossings int             `json:"crossings"`
}

type ListEntriesRequest struct {
	MoldID    string `form:"-"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []ProductionEntry `json:"entries"`
}

// Service records production and lists the audit trail. RecordProduction
// is the only writer of mold shot counters: it locks the mold row,
// advances the counter by ceil(quantity / cavity_count), appends the
// entry, and raises milestone side effects in the same transaction.
type Service interface {
	RecordProduction(ctx context.Context, req RecordProductionRequest) (*RecordProductionResponse, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
}

var (
	ErrInvalidMold         = errors.New("invalid_mold")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidProducedDate = errors.New("invalid_produced_date")
	ErrMoldNotFound        = errors.New("mold_not_found")
	ErrRecordingConflict   = errors.New("recording_conflict")
)
