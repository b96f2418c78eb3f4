package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/cache"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
	"github.com/variantlab/variant-engine/pkg/services"
)

// stubFlagRepo serves a fixed set of flags keyed by key and ID.
type stubFlagRepo struct {
	flags []*models.FeatureFlag
}

func (s *stubFlagRepo) Create(ctx context.Context, flag *models.FeatureFlag) error {
	flag.ID = uuid.New()
	s.flags = append(s.flags, flag)
	return nil
}

func (s *stubFlagRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error) {
	for _, f := range s.flags {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (s *stubFlagRepo) GetByKey(ctx context.Context, key string) (*models.FeatureFlag, error) {
	for _, f := range s.flags {
		if f.Key == key {
			return f, nil
		}
	}
	return nil, nil
}

func (s *stubFlagRepo) List(ctx context.Context) ([]*models.FeatureFlag, error) {
	return s.flags, nil
}

func (s *stubFlagRepo) Update(ctx context.Context, flag *models.FeatureFlag) error { return nil }
func (s *stubFlagRepo) Delete(ctx context.Context, id uuid.UUID) error             { return nil }

var _ repositories.FlagRepository = (*stubFlagRepo)(nil)

// stubExperimentRepo reports no active experiments.
type stubExperimentRepo struct{}

func (s *stubExperimentRepo) Create(ctx context.Context, exp *models.Experiment) error { return nil }
func (s *stubExperimentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return nil, nil
}
func (s *stubExperimentRepo) List(ctx context.Context) ([]*models.Experiment, error) {
	return nil, nil
}
func (s *stubExperimentRepo) GetByFlag(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error) {
	return nil, nil
}
func (s *stubExperimentRepo) GetActiveForFlag(ctx context.Context, flagID uuid.UUID, now time.Time) (*models.Experiment, error) {
	return nil, nil
}
func (s *stubExperimentRepo) Update(ctx context.Context, exp *models.Experiment) error { return nil }
func (s *stubExperimentRepo) Delete(ctx context.Context, id uuid.UUID) error           { return nil }

var _ repositories.ExperimentRepository = (*stubExperimentRepo)(nil)

func newFlagHandlerFixture(flags ...*models.FeatureFlag) (*FlagHandler, *http.ServeMux) {
	logger := zap.NewNop()
	flagRepo := &stubFlagRepo{flags: flags}
	flagCache := cache.NewFlagCache(nil, time.Minute, logger)
	flagService := services.NewFlagService(flagRepo, flagCache, logger)
	evaluationService := services.NewEvaluationService(flagService, nil, &stubExperimentRepo{}, nil, logger)
	handler := NewFlagHandler(flagService, evaluationService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/flags", handler.Create)
	mux.HandleFunc("GET /api/flags", handler.List)
	mux.HandleFunc("GET /api/flags/{flagId}", handler.Get)
	mux.HandleFunc("GET /api/flags/{flagIdOrKey}/evaluate/{userId}", handler.Evaluate)
	return handler, mux
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()

	var resp ApiResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestCreateFlagEndpoint(t *testing.T) {
	_, mux := newFlagHandlerFixture()

	body := `{"key": "checkout-v2", "name": "Checkout V2", "enabled": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/flags", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("Success = false, want true")
	}
}

func TestCreateFlagRejectsMissingKey(t *testing.T) {
	_, mux := newFlagHandlerFixture()

	body := `{"name": "No Key"}`
	req := httptest.NewRequest(http.MethodPost, "/api/flags", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetFlagNotFound(t *testing.T) {
	_, mux := newFlagHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/flags/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetFlagRejectsMalformedID(t *testing.T) {
	_, mux := newFlagHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/flags/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEvaluateEndpointDisabledFlag(t *testing.T) {
	flag := &models.FeatureFlag{ID: uuid.New(), Key: "dark-mode", Name: "Dark Mode", Enabled: false}
	_, mux := newFlagHandlerFixture(flag)

	req := httptest.NewRequest(http.MethodGet, "/api/flags/dark-mode/evaluate/user-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Success bool                      `json:"success"`
		Data    services.EvaluationResult `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.FlagEnabled {
		t.Error("flagEnabled = true, want false")
	}
}

func TestEvaluateEndpointUnknownFlag(t *testing.T) {
	_, mux := newFlagHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/flags/missing/evaluate/user-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEvaluateEndpointEnabledFlagNoExperiment(t *testing.T) {
	flag := &models.FeatureFlag{ID: uuid.New(), Key: "dark-mode", Name: "Dark Mode", Enabled: true}
	_, mux := newFlagHandlerFixture(flag)

	req := httptest.NewRequest(http.MethodGet, "/api/flags/dark-mode/evaluate/user-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Success bool                      `json:"success"`
		Data    services.EvaluationResult `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Data.FlagEnabled {
		t.Error("flagEnabled = false, want true")
	}
	if resp.Data.Variant != nil {
		t.Errorf("variant = %v, want absent without an active experiment", *resp.Data.Variant)
	}
}
