package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	"github.com/shopfloor/moldtrack/internal/observability/metrics"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	scheduledomain "github.com/shopfloor/moldtrack/internal/schedule/domain"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"github.com/shopfloor/moldtrack/pkg/db"
	"github.com/shopfloor/moldtrack/pkg/db/option"
	"github.com/shopfloor/moldtrack/pkg/db/pagination"
	"github.com/shopfloor/moldtrack/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recordAttempts bounds retries on serialization failures before the
// caller is told to retry.
const recordAttempts = 3

const producedDateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Thresholds *config.ThresholdsHolder
	Clock      clock.Clock
	Repo       productiondomain.Repository
	Alerts     alertdomain.Service
	Schedule   scheduledomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	thresholds *config.ThresholdsHolder
	clock      clock.Clock
	repo       productiondomain.Repository
	alerts     alertdomain.Service
	schedule   scheduledomain.Service
	metrics    *metrics.Metrics
	entryrepo  repository.Repository[productiondomain.ProductionEntry]
}

func NewService(p Params) productiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("production.service"),
		genID:      p.GenID,
		thresholds: p.Thresholds,
		clock:      p.Clock,
		repo:       p.Repo,
		alerts:     p.Alerts,
		schedule:   p.Schedule,
		metrics:    p.Metrics,
		entryrepo:  repository.ProvideStore[productiondomain.ProductionEntry](p.DB),
	}
}

// RecordProduction advances the mold's shot counter and raises every
// milestone side effect inside one transaction. The mold row is locked
// for the duration, so concurrent recorders serialize and each one
// observes the previous committed counter. Serialization failures are
// retried up to recordAttempts times, then surfaced as a conflict.
func (s *Service) RecordProduction(ctx context.Context, req productiondomain.RecordProductionRequest) (*productiondomain.RecordProductionResponse, error) {
	moldID, err := snowflake.ParseString(strings.TrimSpace(req.MoldID))
	if err != nil || moldID == 0 {
		return nil, productiondomain.ErrInvalidMold
	}
	if req.Quantity <= 0 {
		return nil, productiondomain.ErrInvalidQuantity
	}

	producedDate, err := time.ParseInLocation(producedDateLayout, strings.TrimSpace(req.ProducedDate), time.UTC)
	if err != nil {
		return nil, productiondomain.ErrInvalidProducedDate
	}

	var (
		resp         *productiondomain.RecordProductionResponse
		crossings    []threshold.Crossing
		alertsRaised []alertdomain.Kind
	)

	for attempt := 1; attempt <= recordAttempts; attempt++ {
		resp, crossings, alertsRaised = nil, nil, nil

		err = s.db.Transaction(func(tx *gorm.DB) error {
			locked, err := s.repo.GetForUpdate(ctx, tx, moldID)
			if err != nil {
				return err
			}
			if locked == nil {
				return productiondomain.ErrMoldNotFound
			}

			// One machine cycle fills every cavity, so quantity converts to
			// shots by ceiling division. A partial run still cycled the mold.
			increment := (req.Quantity + int64(locked.CavityCount) - 1) / int64(locked.CavityCount)
			previous := locked.CurrentShots
			newShots := previous + increment

			entry := &productiondomain.ProductionEntry{
				ID:                s.genID.Generate(),
				MoldID:            moldID,
				ProducedDate:      producedDate,
				Shift:             strings.TrimSpace(req.Shift),
				Quantity:          req.Quantity,
				ShotIncrement:     increment,
				CavityCountAtTime: locked.CavityCount,
				PreviousShots:     previous,
				NewShots:          newShots,
				RecordedBy:        strings.TrimSpace(req.RecordedBy),
				Note:              strings.TrimSpace(req.Note),
				Metadata:          datatypes.JSONMap(req.Metadata),
				CreatedAt:         s.clock.Now(),
			}
			if err := s.repo.AppendEntry(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.repo.SetShots(ctx, tx, moldID, newShots); err != nil {
				return err
			}

			catalog := s.thresholds.Get()
			crossings = threshold.Detect(previous, newShots, locked.TargetShots, catalog)

			for _, crossing := range crossings {
				switch crossing.Class {
				case threshold.ClassAbsolute:
					if err := s.schedule.AdvanceNextInspectionTx(ctx, tx, moldID, crossing.ThresholdShots); err != nil {
						return err
					}
					alert, err := s.alerts.RaiseInspectionAlertTx(ctx, tx, moldID, crossing, newShots)
					if err != nil {
						return err
					}
					if alert != nil {
						alertsRaised = append(alertsRaised, alert.Kind)
					}
				case threshold.ClassPercent:
					alert, err := s.alerts.RaiseProgressAlertTx(ctx, tx, moldID, crossing, newShots, *locked.TargetShots)
					if err != nil {
						return err
					}
					if alert != nil {
						alertsRaised = append(alertsRaised, alert.Kind)
					}
				}
			}

			snapshot := productiondomain.MoldSnapshot{
				MoldID:       moldID.String(),
				CurrentShots: newShots,
				TargetShots:  locked.TargetShots,
			}
			if locked.TargetShots != nil && *locked.TargetShots > 0 {
				percent := int64(math.Round(float64(newShots) / float64(*locked.TargetShots) * 100))
				snapshot.ProgressPercent = &percent
			}
			if next := catalog.NextMilestoneAbove(newShots); next != nil {
				shots := next.Shots
				snapshot.NextInspectionShots = &shots
			}

			resp = &productiondomain.RecordProductionResponse{
				Entry:     *entry,
				Mold:      snapshot,
				Crossings: len(crossings),
			}
			return nil
		})
		if err == nil {
			break
		}
		if !db.IsSerializationErr(err) {
			return nil, err
		}
		s.log.Warn("recording transaction serialization failure",
			zap.String("mold_id", moldID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		if db.IsSerializationErr(err) {
			return nil, productiondomain.ErrRecordingConflict
		}
		return nil, err
	}

	s.metrics.RecordProduction(ctx, resp.Entry.Shift, resp.Entry.ShotIncrement)
	for _, crossing := range crossings {
		s.metrics.RecordCrossing(ctx, string(crossing.Class))
	}
	for _, kind := range alertsRaised {
		s.metrics.RecordAlert(ctx, string(kind))
	}

	s.log.Info("production recorded",
		zap.String("mold_id", moldID.String()),
		zap.Int64("quantity", resp.Entry.Quantity),
		zap.Int64("shot_increment", resp.Entry.ShotIncrement),
		zap.Int64("current_shots", resp.Mold.CurrentShots),
		zap.Int("crossings", len(crossings)),
	)
	return resp, nil
}

func (s *Service) ListEntries(ctx context.Context, req productiondomain.ListEntriesRequest) (productiondomain.ListEntriesResponse, error) {
	moldID, err := snowflake.ParseString(strings.TrimSpace(req.MoldID))
	if err != nil || moldID == 0 {
		return productiondomain.ListEntriesResponse{}, productiondomain.ErrInvalidMold
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > option.MaxPageSize {
		pageSize = option.MaxPageSize
	}

	items, err := s.entryrepo.Find(ctx, &productiondomain.ProductionEntry{MoldID: moldID},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
	)
	if err != nil {
		return productiondomain.ListEntriesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(e *productiondomain.ProductionEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]productiondomain.ProductionEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	return productiondomain.ListEntriesResponse{
		PageInfo: *pageInfo,
		Entries:  entries,
	}, nil
}
