package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	alertservice "github.com/shopfloor/moldtrack/internal/alert/service"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	productionrepo "github.com/shopfloor/moldtrack/internal/production/repository"
	scheduleservice "github.com/shopfloor/moldtrack/internal/schedule/service"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"github.com/shopfloor/moldtrack/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testThresholds(t *testing.T) *config.ThresholdsHolder {
	t.Helper()
	holder, err := config.NewStaticThresholdsHolder(threshold.Catalog{
		Absolute: []threshold.AbsoluteMilestone{
			{Shots: 10, Label: "10 shots", Severity: threshold.SeverityWarning},
			{Shots: 20, Label: "20 shots", Severity: threshold.SeverityCritical},
		},
		Percent: []threshold.PercentTier{
			{Percent: 80, Severity: threshold.SeverityInfo},
			{Percent: 100, Severity: threshold.SeverityCritical},
		},
	})
	require.NoError(t, err)
	return holder
}

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   productiondomain.Service
}

func setup(t *testing.T, alerts alertdomain.Service) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&assetdomain.Mold{},
		&productiondomain.ProductionEntry{},
		&alertdomain.Alert{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	thresholds := testThresholds(t)
	log := zap.NewNop()

	if alerts == nil {
		alerts = alertservice.NewService(alertservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Clock: fakeClock,
		})
	}

	schedule := scheduleservice.NewService(scheduleservice.Params{
		DB:         db,
		Log:        log,
		Thresholds: thresholds,
		Clock:      fakeClock,
	})

	repo := productionrepo.NewRepository(productionrepo.Params{Clock: fakeClock})

	svc := NewService(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Thresholds: thresholds,
		Clock:      fakeClock,
		Repo:       repo,
		Alerts:     alerts,
		Schedule:   schedule,
	})

	return &fixture{db: db, node: node, clock: fakeClock, svc: svc}
}

func (f *fixture) createMold(t *testing.T, cavityCount int, currentShots int64, targetShots *int64) *assetdomain.Mold {
	t.Helper()
	mold := &assetdomain.Mold{
		ID:           f.node.Generate(),
		Code:         "M-" + f.node.Generate().String(),
		Name:         "test mold",
		CavityCount:  cavityCount,
		CurrentShots: currentShots,
		TargetShots:  targetShots,
		Active:       true,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.db.Create(mold).Error)
	return mold
}

func int64p(v int64) *int64 { return &v }

func TestRecordProduction_CeilingIncrement(t *testing.T) {
	tests := []struct {
		name          string
		cavityCount   int
		quantity      int64
		wantIncrement int64
	}{
		{name: "exact multiple", cavityCount: 4, quantity: 8, wantIncrement: 2},
		{name: "partial cycle rounds up", cavityCount: 4, quantity: 10, wantIncrement: 3},
		{name: "single cavity", cavityCount: 1, quantity: 7, wantIncrement: 7},
		{name: "below one cycle", cavityCount: 8, quantity: 3, wantIncrement: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, nil)
			mold := f.createMold(t, tc.cavityCount, 0, nil)

			resp, err := f.svc.RecordProduction(context.Background(), productiondomain.RecordProductionRequest{
				MoldID:       mold.ID.String(),
				ProducedDate: "2026-03-01",
				Shift:        "day",
				Quantity:     tc.quantity,
			})
			require.NoError(t, err)

			assert.Equal(t, tc.wantIncrement, resp.Entry.ShotIncrement)
			assert.Equal(t, int64(0), resp.Entry.PreviousShots)
			assert.Equal(t, tc.wantIncrement, resp.Entry.NewShots)
			assert.Equal(t, tc.cavityCount, resp.Entry.CavityCountAtTime)
			assert.Equal(t, tc.wantIncrement, resp.Mold.CurrentShots)

			var stored assetdomain.Mold
			require.NoError(t, f.db.First(&stored, "id = ?", mold.ID).Error)
			assert.Equal(t, tc.wantIncrement, stored.CurrentShots)
		})
	}
}

func TestRecordProduction_Validation(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 2, 0, nil)
	ctx := context.Background()

	_, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 0,
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidQuantity)

	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: -5,
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidQuantity)

	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: "garbage", Quantity: 1,
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidMold)

	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 1, ProducedDate: "03/01/2026",
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidProducedDate)

	// The date is required; an omitted one is rejected, not defaulted.
	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 1,
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidProducedDate)

	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 1, ProducedDate: "  ",
	})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidProducedDate)

	var entryCount int64
	require.NoError(t, f.db.Model(&productiondomain.ProductionEntry{}).Count(&entryCount).Error)
	assert.Equal(t, int64(0), entryCount)

	_, err = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: f.node.Generate().String(), Quantity: 1, ProducedDate: "2026-03-01",
	})
	assert.ErrorIs(t, err, productiondomain.ErrMoldNotFound)
}

func TestRecordProduction_MilestoneCrossing(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 8, nil)
	ctx := context.Background()

	resp, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 5, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), resp.Mold.CurrentShots)
	assert.Equal(t, 1, resp.Crossings)

	var alerts []alertdomain.Alert
	require.NoError(t, f.db.Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, alertdomain.KindInspectionDue, alerts[0].Kind)
	assert.Equal(t, int64(10), alerts[0].MilestoneShots)
	assert.Equal(t, int64(13), alerts[0].ShotsAtRaise)

	// The next inspection marker advanced past the crossed milestone.
	var stored assetdomain.Mold
	require.NoError(t, f.db.First(&stored, "id = ?", mold.ID).Error)
	require.NotNil(t, stored.NextInspectionShots)
	assert.Equal(t, int64(20), *stored.NextInspectionShots)
	require.NotNil(t, resp.Mold.NextInspectionShots)
	assert.Equal(t, int64(20), *resp.Mold.NextInspectionShots)
}

func TestRecordProduction_MultipleCrossingsOneRecording(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 0, int64p(25))
	ctx := context.Background()

	// 0 -> 22 crosses both absolute milestones and the 80% tier (20 of 25).
	resp, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 22, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Crossings)

	var alerts []alertdomain.Alert
	require.NoError(t, f.db.Order("milestone_shots").Find(&alerts).Error)
	require.Len(t, alerts, 3)
	assert.Equal(t, alertdomain.KindInspectionDue, alerts[0].Kind)
	assert.Equal(t, alertdomain.KindInspectionDue, alerts[1].Kind)
	assert.Equal(t, alertdomain.KindProgress, alerts[2].Kind)
	assert.Equal(t, int64(80), alerts[2].Percent)

	require.NotNil(t, resp.Mold.ProgressPercent)
	assert.Equal(t, int64(88), *resp.Mold.ProgressPercent)
}

func TestRecordProduction_EdgeTriggeredNoRefire(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 0, nil)
	ctx := context.Background()

	_, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 12, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)

	// Counter is already past 10; recording more must not refire it.
	resp, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 3, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Crossings)

	var count int64
	require.NoError(t, f.db.Model(&alertdomain.Alert{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordProduction_ActiveAlertSuppressed(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 8, nil)
	ctx := context.Background()

	// An operator-raised alert for the 10-shot milestone is still active.
	require.NoError(t, f.db.Create(&alertdomain.Alert{
		ID:             f.node.Generate(),
		MoldID:         mold.ID,
		Kind:           alertdomain.KindInspectionDue,
		Title:          "10 shots",
		Message:        "manual",
		Severity:       threshold.SeverityWarning,
		Status:         alertdomain.StatusActive,
		MilestoneShots: 10,
		ShotsAtRaise:   8,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}).Error)

	resp, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 5, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Crossings)

	// The crossing is detected but no second active alert appears.
	var count int64
	require.NoError(t, f.db.Model(&alertdomain.Alert{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type failingAlerts struct{}

var errSinkDown = errors.New("alert sink down")

func (failingAlerts) RaiseInspectionAlertTx(context.Context, *gorm.DB, snowflake.ID, threshold.Crossing, int64) (*alertdomain.Alert, error) {
	return nil, errSinkDown
}

func (failingAlerts) RaiseProgressAlertTx(context.Context, *gorm.DB, snowflake.ID, threshold.Crossing, int64, int64) (*alertdomain.Alert, error) {
	return nil, errSinkDown
}

func (failingAlerts) List(context.Context, alertdomain.ListAlertsRequest) (alertdomain.ListAlertsResponse, error) {
	return alertdomain.ListAlertsResponse{}, nil
}

func (failingAlerts) Resolve(context.Context, string) (*alertdomain.Alert, error) {
	return nil, nil
}

func TestRecordProduction_AlertFailureRollsBackCounter(t *testing.T) {
	f := setup(t, failingAlerts{})
	mold := f.createMold(t, 1, 8, nil)
	ctx := context.Background()

	_, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: mold.ID.String(), Quantity: 5, ProducedDate: "2026-03-01",
	})
	require.ErrorIs(t, err, errSinkDown)

	// Nothing committed: counter, entries, and alerts all unchanged.
	var stored assetdomain.Mold
	require.NoError(t, f.db.First(&stored, "id = ?", mold.ID).Error)
	assert.Equal(t, int64(8), stored.CurrentShots)

	var entryCount, alertCount int64
	require.NoError(t, f.db.Model(&productiondomain.ProductionEntry{}).Count(&entryCount).Error)
	require.NoError(t, f.db.Model(&alertdomain.Alert{}).Count(&alertCount).Error)
	assert.Equal(t, int64(0), entryCount)
	assert.Equal(t, int64(0), alertCount)
}

func TestRecordProduction_ConcurrentRecorders(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 0, nil)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
				MoldID: mold.ID.String(), Quantity: 1, ProducedDate: "2026-03-01",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	var stored assetdomain.Mold
	require.NoError(t, f.db.First(&stored, "id = ?", mold.ID).Error)
	assert.Equal(t, int64(workers), stored.CurrentShots)

	// Each entry observed the committed counter of its predecessor.
	var entries []productiondomain.ProductionEntry
	require.NoError(t, f.db.Order("new_shots").Find(&entries).Error)
	require.Len(t, entries, workers)
	for i, entry := range entries {
		assert.Equal(t, int64(i), entry.PreviousShots)
		assert.Equal(t, int64(i+1), entry.NewShots)
	}
}

func TestListEntries(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 0, nil)
	other := f.createMold(t, 1, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
			MoldID: mold.ID.String(), Quantity: 2, ProducedDate: "2026-03-01",
		})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	_, err := f.svc.RecordProduction(ctx, productiondomain.RecordProductionRequest{
		MoldID: other.ID.String(), Quantity: 1, ProducedDate: "2026-03-01",
	})
	require.NoError(t, err)

	resp, err := f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{MoldID: mold.ID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 3)
	assert.False(t, resp.HasMore)

	paged, err := f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{
		MoldID: mold.ID.String(), PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, paged.Entries, 2)
	assert.True(t, paged.HasMore)
	require.NotEmpty(t, paged.NextPageToken)

	rest, err := f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{
		MoldID: mold.ID.String(), PageSize: 2, PageToken: paged.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 1)
	assert.False(t, rest.HasMore)

	_, err = f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{MoldID: "nope"})
	assert.ErrorIs(t, err, productiondomain.ErrInvalidMold)
}

func TestListEntries_PageSizeClamped(t *testing.T) {
	f := setup(t, nil)
	mold := f.createMold(t, 1, 0, nil)
	ctx := context.Background()

	base := f.clock.Now()
	for i := 0; i < option.MaxPageSize+5; i++ {
		require.NoError(t, f.db.Create(&productiondomain.ProductionEntry{
			ID:                f.node.Generate(),
			MoldID:            mold.ID,
			ProducedDate:      base,
			Shift:             "day",
			Quantity:          1,
			ShotIncrement:     1,
			CavityCountAtTime: 1,
			PreviousShots:     int64(i),
			NewShots:          int64(i + 1),
			CreatedAt:         base.Add(time.Duration(i) * time.Second),
		}).Error)
	}

	// An oversized page request is clamped; the truncated page still
	// reports that more rows remain.
	resp, err := f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{
		MoldID: mold.ID.String(), PageSize: 10_000,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, option.MaxPageSize)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)

	rest, err := f.svc.ListEntries(ctx, productiondomain.ListEntriesRequest{
		MoldID: mold.ID.String(), PageSize: 10_000, PageToken: resp.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 5)
	assert.False(t, rest.HasMore)
}
