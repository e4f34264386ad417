package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	alertservice "github.com/shopfloor/moldtrack/internal/alert/service"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	assetservice "github.com/shopfloor/moldtrack/internal/asset/service"
	"github.com/shopfloor/moldtrack/internal/clock"
	"github.com/shopfloor/moldtrack/internal/config"
	"github.com/shopfloor/moldtrack/internal/observability"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	productionrepo "github.com/shopfloor/moldtrack/internal/production/repository"
	productionservice "github.com/shopfloor/moldtrack/internal/production/service"
	scheduleservice "github.com/shopfloor/moldtrack/internal/schedule/service"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	thresholds, err := config.NewStaticThresholdsHolder(threshold.Catalog{
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

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	alertSvc := alertservice.NewService(alertservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
	})
	scheduleSvc := scheduleservice.NewService(scheduleservice.Params{
		DB:         db,
		Log:        log,
		Thresholds: thresholds,
		Clock:      fakeClock,
	})
	assetSvc := assetservice.NewService(assetservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Thresholds: thresholds,
		Clock:      fakeClock,
	})
	productionSvc := productionservice.NewService(productionservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Thresholds: thresholds,
		Clock:      fakeClock,
		Repo:       productionrepo.NewRepository(productionrepo.Params{Clock: fakeClock}),
		Alerts:     alertSvc,
		Schedule:   scheduleSvc,
	})

	engine := NewEngine(observability.Config{}, nil)
	return NewServer(ServerParams{
		Gin:           engine,
		Cfg:           config.Config{},
		DB:            db,
		GenID:         node,
		AssetSvc:      assetSvc,
		ProductionSvc: productionSvc,
		AlertSvc:      alertSvc,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func createMold(t *testing.T, s *Server, body map[string]any) assetdomain.Mold {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/molds", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var mold assetdomain.Mold
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mold))
	return mold
}

func TestCreateMoldEndpoint(t *testing.T) {
	s := newTestServer(t)

	mold := createMold(t, s, map[string]any{
		"code": "INJ-001", "name": "housing", "cavity_count": 4,
	})
	assert.Equal(t, "INJ-001", mold.Code)
	assert.Equal(t, 4, mold.CavityCount)
	require.NotNil(t, mold.NextInspectionShots)
	assert.Equal(t, int64(10), *mold.NextInspectionShots)

	// Duplicate code is a conflict.
	w := doJSON(t, s, http.MethodPost, "/api/molds", map[string]any{
		"code": "INJ-001", "name": "housing copy", "cavity_count": 2,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Missing name is a validation error.
	w = doJSON(t, s, http.MethodPost, "/api/molds", map[string]any{"code": "INJ-002"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordProductionEndpoint(t *testing.T) {
	s := newTestServer(t)
	mold := createMold(t, s, map[string]any{
		"code": "INJ-010", "name": "cap", "cavity_count": 4, "target_shots": 25,
	})

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/molds/%s/production", mold.ID), map[string]any{
		"produced_date": "2026-03-01",
		"shift":         "night",
		"quantity":      41,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp productiondomain.RecordProductionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.Entry.ShotIncrement)
	assert.Equal(t, int64(11), resp.Mold.CurrentShots)
	assert.Equal(t, 1, resp.Crossings)

	// The crossing raised an inspection alert.
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/molds/%s/alerts", mold.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var alerts alertdomain.ListAlertsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts.Alerts, 1)
	assert.Equal(t, alertdomain.KindInspectionDue, alerts.Alerts[0].Kind)
	assert.Equal(t, int64(10), alerts.Alerts[0].MilestoneShots)

	// Audit trail is queryable.
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/molds/%s/production", mold.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries productiondomain.ListEntriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, int64(41), entries.Entries[0].Quantity)
}

func TestRecordProductionEndpoint_Errors(t *testing.T) {
	s := newTestServer(t)
	mold := createMold(t, s, map[string]any{"code": "INJ-020", "name": "bracket"})

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/molds/%s/production", mold.ID), map[string]any{
		"quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/molds/%s/production", mold.ID), map[string]any{
		"quantity": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "produced_date is required")

	w = doJSON(t, s, http.MethodPost, "/api/molds/123456789/production", map[string]any{
		"produced_date": "2026-03-01",
		"quantity":      5,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveAlertEndpoint(t *testing.T) {
	s := newTestServer(t)
	mold := createMold(t, s, map[string]any{"code": "INJ-030", "name": "lid"})

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/molds/%s/production", mold.ID), map[string]any{
		"produced_date": "2026-03-01",
		"quantity":      12,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var listResp alertdomain.ListAlertsResponse
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/molds/%s/alerts", mold.ID), nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Alerts, 1)

	alertID := listResp.Alerts[0].ID.String()
	w = doJSON(t, s, http.MethodPost, "/api/alerts/"+alertID+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resolved alertdomain.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, alertdomain.StatusResolved, resolved.Status)

	// Resolving twice is a conflict.
	w = doJSON(t, s, http.MethodPost, "/api/alerts/"+alertID+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateTargetEndpoint(t *testing.T) {
	s := newTestServer(t)
	mold := createMold(t, s, map[string]any{"code": "INJ-040", "name": "gear"})

	w := doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/molds/%s/target", mold.ID), map[string]any{
		"target_shots": 100,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated assetdomain.Mold
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.NotNil(t, updated.TargetShots)
	assert.Equal(t, int64(100), *updated.TargetShots)

	w = doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/molds/%s/target", mold.ID), map[string]any{
		"target_shots": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
