package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	scheduledomain "github.com/shopfloor/moldtrack/internal/schedule/domain"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Thresholds *config.ThresholdsHolder
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	thresholds *config.ThresholdsHolder
	clock      clock.Clock
}

func NewService(p Params) scheduledomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("schedule.service"),
		thresholds: p.Thresholds,
		clock:      p.Clock,
	}
}

// AdvanceNextInspectionTx moves the mold's next-inspection marker to the
// lowest milestone above the one just crossed. When the catalog is
// exhausted the marker is cleared.
func (s *Service) AdvanceNextInspectionTx(ctx context.Context, tx *gorm.DB, moldID snowflake.ID, crossedShots int64) error {
	if moldID == 0 {
		return scheduledomain.ErrInvalidMold
	}

	var nextShots *int64
	if next := s.thresholds.Get().NextMilestoneAbove(crossedShots); next != nil {
		shots := next.Shots
		nextShots = &shots
	}

	if err := tx.WithContext(ctx).
		Model(&assetdomain.Mold{}).
		Where("id = ?", moldID).
		Updates(map[string]any{
			"next_inspection_shots": nextShots,
			"updated_at":            s.clock.Now(),
		}).Error; err != nil {
		return err
	}

	s.log.Debug("next inspection advanced",
		zap.String("mold_id", moldID.String()),
		zap.Int64("crossed_shots", crossedShots),
		zap.Int64p("next_inspection_shots", nextShots),
	)
	return nil
}

func (s *Service) NextDue(ctx context.Context, moldID snowflake.ID) (*threshold.AbsoluteMilestone, error) {
	if moldID == 0 {
		return nil, scheduledomain.ErrInvalidMold
	}

	var mold assetdomain.Mold
	err := s.db.WithContext(ctx).First(&mold, "id = ?", moldID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduledomain.ErrMoldNotFound
		}
		return nil, err
	}

	return s.thresholds.Get().NextMilestoneAbove(mold.CurrentShots), nil
}
