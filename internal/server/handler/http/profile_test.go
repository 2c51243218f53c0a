package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/middleware"
	"github.com/beitak/beitak/internal/models"
	handler "github.com/beitak/beitak/internal/server/handler/http"
	"github.com/beitak/beitak/internal/service"
)

// fakeProfileService records calls and returns preconfigured results.
type fakeProfileService struct {
	profile models.Profile
	err     error

	updatedID string
	received  models.ProfileUpdate
}

func (f *fakeProfileService) Get(ctx context.Context, id string) (models.Profile, error) {
	return f.profile, f.err
}

func (f *fakeProfileService) Update(ctx context.Context, id string, upd models.ProfileUpdate) error {
	f.updatedID = id
	f.received = upd
	return f.err
}

// serveProfile routes a request for path through a chi router so that the
// {id} parameter is populated, as the caller identified by userID.
func serveProfile(h *handler.ProfileHandler, method, path, body, userID string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/profiles/{id}", h.Get)
	r.Patch("/api/profiles/{id}", h.Update)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(middleware.WithClaims(req.Context(), &service.Claims{UserID: userID}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProfileHandler_Get(t *testing.T) {
	fake := &fakeProfileService{profile: models.Profile{ID: "u-1", FullName: models.Ptr("Amina")}}
	h := &handler.ProfileHandler{ProfileService: fake, Log: zap.NewNop()}

	rec := serveProfile(h, http.MethodGet, "/api/profiles/u-1", "", "u-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var got models.Profile
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FullName == nil || *got.FullName != "Amina" {
		t.Errorf("profile = %+v", got)
	}
}

func TestProfileHandler_GetOtherUserForbidden(t *testing.T) {
	h := &handler.ProfileHandler{ProfileService: &fakeProfileService{}, Log: zap.NewNop()}

	rec := serveProfile(h, http.MethodGet, "/api/profiles/u-2", "", "u-1")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403", rec.Code)
	}
}

func TestProfileHandler_GetNotFound(t *testing.T) {
	h := &handler.ProfileHandler{ProfileService: &fakeProfileService{err: apperr.ErrNotFound}, Log: zap.NewNop()}

	rec := serveProfile(h, http.MethodGet, "/api/profiles/u-1", "", "u-1")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}

func TestProfileHandler_Update(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "partial update", body: `{"age":27,"smoking":"no"}`, wantCode: http.StatusNoContent},
		{name: "bad JSON", body: `{`, wantCode: http.StatusBadRequest, wantBody: "invalid body"},
		{name: "server-owned field", body: `{"profile_verified":true}`, wantCode: http.StatusBadRequest, wantBody: "invalid body"},
		{
			name:     "validation error",
			body:     `{"age":0}`,
			err:      apperr.Invalid("age", "age must be positive"),
			wantCode: http.StatusBadRequest,
			wantBody: `{"field":"age","error":"age must be positive"}`,
		},
		{
			name:     "incomplete",
			body:     `{"onboarding_completed":true}`,
			err:      fmt.Errorf("%w: missing [bio]", apperr.ErrIncomplete),
			wantCode: http.StatusConflict,
			wantBody: "onboarding incomplete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProfileService{err: tt.err}
			h := &handler.ProfileHandler{ProfileService: fake, Log: zap.NewNop()}

			rec := serveProfile(h, http.MethodPatch, "/api/profiles/u-1", tt.body, "u-1")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d; want %d (body %q)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q; want substring %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestProfileHandler_UpdateDecodesOnlySuppliedFields(t *testing.T) {
	fake := &fakeProfileService{}
	h := &handler.ProfileHandler{ProfileService: fake, Log: zap.NewNop()}

	serveProfile(h, http.MethodPatch, "/api/profiles/u-1", `{"age":27}`, "u-1")
	if fake.updatedID != "u-1" {
		t.Errorf("updated id = %q", fake.updatedID)
	}
	if fake.received.Age == nil || *fake.received.Age != 27 {
		t.Errorf("age = %v", fake.received.Age)
	}
	if fake.received.FullName != nil || fake.received.CompleteOnboarding {
		t.Errorf("unexpected fields in update: %+v", fake.received)
	}
}
