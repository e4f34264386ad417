package domain

import (
	"context"
	"errors"

	"github.com/shopfloor/moldtrack/pkg/db/pagination"
)

type CreateMoldRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	CavityCount int    `json:"cavity_count"`
	TargetShots *int64 `json:"target_shots"`
}

type UpdateTargetRequest struct {
	MoldID      string `json:"mold_id"`
	TargetShots *int64 `json:"target_shots"`
}

type ListMoldsRequest struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListMoldsResponse struct {
	pagination.PageInfo
	Molds []Mold `json:"molds"`
}

type Service interface {
	Create(ctx context.Context, req CreateMoldRequest) (*Mold, error)
	GetByID(ctx context.Context, id string) (*Mold, error)
	List(ctx context.Context, req ListMoldsRequest) (ListMoldsResponse, error)
	UpdateTarget(ctx context.Context, req UpdateTargetRequest) (*Mold, error)
}

var (
	ErrInvalidMold        = errors.New("invalid_mold")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidCavityCount = errors.New("invalid_cavity_count")
	ErrInvalidTargetShots = errors.New("invalid_target_shots")
	ErrDuplicateCode      = errors.New("duplicate_code")
	ErrMoldNotFound       = errors.New("mold_not_found")
)
