package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	"github.com/shopfloor/moldtrack/pkg/db"
	"github.com/shopfloor/moldtrack/pkg/db/option"
	"github.com/shopfloor/moldtrack/pkg/db/pagination"
	"github.com/shopfloor/moldtrack/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Thresholds *config.ThresholdsHolder
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	thresholds *config.ThresholdsHolder
	clock      clock.Clock
	moldrepo   repository.Repository[assetdomain.Mold]
}

func NewService(p Params) assetdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("asset.service"),
		genID:      p.GenID,
		thresholds: p.Thresholds,
		clock:      p.Clock,
		moldrepo:   repository.ProvideStore[assetdomain.Mold](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req assetdomain.CreateMoldRequest) (*assetdomain.Mold, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, assetdomain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, assetdomain.ErrInvalidName
	}
	cavityCount := req.CavityCount
	if cavityCount == 0 {
		cavityCount = 1
	}
	if cavityCount < 1 {
		return nil, assetdomain.ErrInvalidCavityCount
	}
	if req.TargetShots != nil && *req.TargetShots <= 0 {
		return nil, assetdomain.ErrInvalidTargetShots
	}

	now := s.clock.Now()
	mold := &assetdomain.Mold{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		CavityCount: cavityCount,
		TargetShots: req.TargetShots,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// A fresh mold starts below every milestone; its first due marker is
	// the lowest one in the catalog.
	if next := s.thresholds.Get().NextMilestoneAbove(0); next != nil {
		shots := next.Shots
		mold.NextInspectionShots = &shots
	}

	if err := s.moldrepo.Create(ctx, mold); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, assetdomain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("mold created",
		zap.String("mold_id", mold.ID.String()),
		zap.String("code", mold.Code),
		zap.Int("cavity_count", mold.CavityCount),
	)
	return mold, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*assetdomain.Mold, error) {
	moldID, err := parseID(id)
	if err != nil {
		return nil, assetdomain.ErrInvalidMold
	}
	mold, err := s.moldrepo.FindOne(ctx, &assetdomain.Mold{ID: moldID})
	if err != nil {
		return nil, err
	}
	if mold == nil {
		return nil, assetdomain.ErrMoldNotFound
	}
	return mold, nil
}

func (s *Service) List(ctx context.Context, req assetdomain.ListMoldsRequest) (assetdomain.ListMoldsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > option.MaxPageSize {
		pageSize = option.MaxPageSize
	}

	items, err := s.moldrepo.Find(ctx, &assetdomain.Mold{},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
	)
	if err != nil {
		return assetdomain.ListMoldsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(m *assetdomain.Mold) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        m.ID.String(),
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	molds := make([]assetdomain.Mold, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		molds = append(molds, *item)
	}

	return assetdomain.ListMoldsResponse{
		PageInfo: *pageInfo,
		Molds:    molds,
	}, nil
}

func (s *Service) UpdateTarget(ctx context.Context, req assetdomain.UpdateTargetRequest) (*assetdomain.Mold, error) {
	moldID, err := parseID(req.MoldID)
	if err != nil {
		return nil, assetdomain.ErrInvalidMold
	}
	if req.TargetShots != nil && *req.TargetShots <= 0 {
		return nil, assetdomain.ErrInvalidTargetShots
	}

	mold, err := s.moldrepo.FindOne(ctx, &assetdomain.Mold{ID: moldID})
	if err != nil {
		return nil, err
	}
	if mold == nil {
		return nil, assetdomain.ErrMoldNotFound
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).
		Model(&assetdomain.Mold{}).
		Where("id = ?", moldID).
		Updates(map[string]any{
			"target_shots": req.TargetShots,
			"updated_at":   now,
		}).Error; err != nil {
		return nil, err
	}

	mold.TargetShots = req.TargetShots
	mold.UpdatedAt = now
	return mold, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, assetdomain.ErrInvalidMold
	}
	return id, nil
}
