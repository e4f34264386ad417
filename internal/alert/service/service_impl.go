package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/threshold"
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

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	alertrepo repository.Repository[alertdomain.Alert]
}

func NewService(p Params) alertdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("alert.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		alertrepo: repository.ProvideStore[alertdomain.Alert](p.DB),
	}
}

// RaiseInspectionAlertTx inserts an inspection-due alert for a crossed
// absolute milestone. While an active alert for the same mold+milestone
// exists the raise is suppressed: the crossing is already represented and
// a second active row would double-page maintenance. The partial unique
// index on alerts backs this check against concurrent recorders.
func (s *Service) RaiseInspectionAlertTx(
	ctx context.Context,
	tx *gorm.DB,
	moldID snowflake.ID,
	crossing threshold.Crossing,
	newShots int64,
) (*alertdomain.Alert, error) {
	if moldID == 0 {
		return nil, alertdomain.ErrInvalidMold
	}
	if crossing.Class != threshold.ClassAbsolute || crossing.ThresholdShots <= 0 {
		return nil, alertdomain.ErrInvalidCrossing
	}

	var activeCount int64
	if err := tx.WithContext(ctx).
		Model(&alertdomain.Alert{}).
		Where("mold_id = ? AND kind = ? AND milestone_shots = ? AND status = ?",
			moldID, alertdomain.KindInspectionDue, crossing.ThresholdShots, alertdomain.StatusActive).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if activeCount > 0 {
		s.log.Debug("inspection alert suppressed",
			zap.String("mold_id", moldID.String()),
			zap.Int64("milestone_shots", crossing.ThresholdShots),
		)
		return nil, nil
	}

	now := s.clock.Now()
	alert := &alertdomain.Alert{
		ID:             s.genID.Generate(),
		MoldID:         moldID,
		Kind:           alertdomain.KindInspectionDue,
		Title:          crossing.Label,
		Message:        fmt.Sprintf("mold reached %s: inspection due at %d shots (now %d)", crossing.Label, crossing.ThresholdShots, newShots),
		Severity:       crossing.Severity,
		Status:         alertdomain.StatusActive,
		MilestoneShots: crossing.ThresholdShots,
		ShotsAtRaise:   newShots,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(alert).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race against a concurrent recorder; the alert exists.
			return nil, nil
		}
		return nil, err
	}
	return alert, nil
}

// RaiseProgressAlertTx inserts a percent-of-target progress alert. Tiers
// are edge-triggered by the detector, so no suppression check is needed.
func (s *Service) RaiseProgressAlertTx(
	ctx context.Context,
	tx *gorm.DB,
	moldID snowflake.ID,
	crossing threshold.Crossing,
	newShots, targetShots int64,
) (*alertdomain.Alert, error) {
	if moldID == 0 {
		return nil, alertdomain.ErrInvalidMold
	}
	if crossing.Class != threshold.ClassPercent || crossing.Percent <= 0 {
		return nil, alertdomain.ErrInvalidCrossing
	}

	now := s.clock.Now()
	alert := &alertdomain.Alert{
		ID:             s.genID.Generate(),
		MoldID:         moldID,
		Kind:           alertdomain.KindProgress,
		Title:          fmt.Sprintf("%d%% of target shots", crossing.Percent),
		Message:        fmt.Sprintf("mold passed %d%% of its target: %d of %d shots", crossing.Percent, newShots, targetShots),
		Severity:       crossing.Severity,
		Status:         alertdomain.StatusActive,
		MilestoneShots: crossing.ThresholdShots,
		Percent:        crossing.Percent,
		ShotsAtRaise:   newShots,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Service) List(ctx context.Context, req alertdomain.ListAlertsRequest) (alertdomain.ListAlertsResponse, error) {
	filter := &alertdomain.Alert{}

	if req.MoldID != "" {
		moldID, err := snowflake.ParseString(strings.TrimSpace(req.MoldID))
		if err != nil || moldID == 0 {
			return alertdomain.ListAlertsResponse{}, alertdomain.ErrInvalidMold
		}
		filter.MoldID = moldID
	}
	if req.Status != "" {
		switch alertdomain.Status(req.Status) {
		case alertdomain.StatusActive, alertdomain.StatusResolved:
			filter.Status = alertdomain.Status(req.Status)
		default:
			return alertdomain.ListAlertsResponse{}, alertdomain.ErrInvalidStatus
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > option.MaxPageSize {
		pageSize = option.MaxPageSize
	}

	items, err := s.alertrepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
	)
	if err != nil {
		return alertdomain.ListAlertsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(a *alertdomain.Alert) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        a.ID.String(),
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	alerts := make([]alertdomain.Alert, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		alerts = append(alerts, *item)
	}

	return alertdomain.ListAlertsResponse{
		PageInfo: *pageInfo,
		Alerts:   alerts,
	}, nil
}

func (s *Service) Resolve(ctx context.Context, alertID string) (*alertdomain.Alert, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(alertID))
	if err != nil || id == 0 {
		return nil, alertdomain.ErrInvalidAlert
	}

	alert, err := s.alertrepo.FindOne(ctx, &alertdomain.Alert{ID: id})
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alertdomain.ErrAlertNotFound
	}
	if alert.Status == alertdomain.StatusResolved {
		return nil, alertdomain.ErrAlreadyResolved
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Model(&alertdomain.Alert{}).
		Where("id = ? AND status = ?", id, alertdomain.StatusActive).
		Updates(map[string]any{
			"status":      alertdomain.StatusResolved,
			"resolved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, alertdomain.ErrAlreadyResolved
	}

	alert.Status = alertdomain.StatusResolved
	alert.ResolvedAt = &now
	alert.UpdatedAt = now

	s.log.Info("alert resolved",
		zap.String("alert_id", alert.ID.String()),
		zap.String("mold_id", alert.MoldID.String()),
		zap.String("kind", string(alert.Kind)),
	)
	return alert, nil
}
