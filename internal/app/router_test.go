package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carpool/internal/app"
	"carpool/internal/domain"
	"carpool/internal/handler"
	"carpool/internal/middleware"
	"carpool/internal/repository/memory"
	"carpool/internal/service"
)

type testServer struct {
	router   *gin.Engine
	store    *memory.Store
	carpools *service.CarpoolService
}

func newTestServer(t *testing.T, checks map[string]handler.HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := memory.NewStore()
	ledger := service.NewLedger()

	carpools := service.NewCarpoolService(store, ledger, service.NewLogNotifier(logger), nil, logger, domain.DefaultPlatformCommission)
	users := service.NewUserService(store, ledger, logger, domain.DefaultSignupCredits)

	router := app.NewRouter(app.RouterDeps{
		CarpoolHandler: handler.NewCarpoolHandler(carpools, logger),
		UserHandler:    handler.NewUserHandler(users, logger),
		HealthHandler:  handler.NewHealthHandler(checks),
		Logger:         logger,
	})

	t.Cleanup(carpools.WaitNotifications)

	return &testServer{router: router, store: store, carpools: carpools}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) addUser(t *testing.T, id string, credits int) {
	t.Helper()
	err := s.store.Repos().Users.Create(context.Background(), &domain.User{
		ID:      id,
		Name:    id,
		Email:   id + "@example.com",
		Credits: credits,
	})
	if err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
}

func (s *testServer) createCarpool(t *testing.T, driverID string, seats, price int) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/carpools", driverID, map[string]any{
		"departure_city":   "Paris",
		"arrival_city":     "Lyon",
		"departure_date":   "2026-11-02",
		"departure_time":   "08:00",
		"total_seats":      seats,
		"price_per_person": price,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d: %s", w.Code, w.Body.String())
	}

	var resp handler.CarpoolResponse
	decode(t, w, &resp)
	return resp.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestJoinEndpoint_ReturnsRemainingCredits(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.addUser(t, "alice", 50)
	carpoolID := s.createCarpool(t, "driver", 3, 20)

	w := s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/join", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp handler.MessageResponse
	decode(t, w, &resp)

	if !resp.Success || resp.Message != "Participation confirmed" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.RemainingCredits == nil || *resp.RemainingCredits != 30 {
		t.Errorf("expected remaining_credits 30, got %v", resp.RemainingCredits)
	}

	w = s.do(t, http.MethodGet, "/v1/carpools/"+carpoolID, "", nil)
	var carpool handler.CarpoolResponse
	decode(t, w, &carpool)
	if carpool.AvailableSeats != 2 {
		t.Errorf("expected 2 available seats, got %d", carpool.AvailableSeats)
	}
}

func TestLeaveEndpoint_OmitsRemainingCredits(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.addUser(t, "alice", 50)
	carpoolID := s.createCarpool(t, "driver", 3, 20)

	s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/join", "alice", nil)
	w := s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/leave", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var raw map[string]any
	decode(t, w, &raw)
	if _, ok := raw["remaining_credits"]; ok {
		t.Errorf("expected no remaining_credits field, got %v", raw)
	}
	if raw["message"] != "Participation cancelled" {
		t.Errorf("unexpected message %v", raw["message"])
	}
}

func TestLifecycleEndpoints_StatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.addUser(t, "alice", 10)
	carpoolID := s.createCarpool(t, "driver", 3, 20)

	testCases := []struct {
		name     string
		path     string
		userID   string
		wantCode int
		wantMsg  string
	}{
		{"unknown carpool", "/v1/carpools/missing/join", "alice", http.StatusNotFound, "Carpool not found"},
		{"insufficient credits", "/v1/carpools/" + carpoolID + "/join", "alice", http.StatusConflict, "Insufficient credits"},
		{"own carpool", "/v1/carpools/" + carpoolID + "/join", "driver", http.StatusConflict, "You cannot join your own carpool"},
		{"not the driver", "/v1/carpools/" + carpoolID + "/start", "alice", http.StatusForbidden, "You are not the driver of this carpool"},
		{"nothing to leave", "/v1/carpools/" + carpoolID + "/leave", "alice", http.StatusNotFound, "Participation not found"},
		{"complete before start", "/v1/carpools/" + carpoolID + "/complete", "driver", http.StatusConflict, "Carpool is not in progress"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tc.path, tc.userID, nil)
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}

			var resp handler.ErrorResponse
			decode(t, w, &resp)
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Message != tc.wantMsg {
				t.Errorf("expected message %q, got %q", tc.wantMsg, resp.Message)
			}
		})
	}
}

func TestActingRoutes_RequireUserHeader(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/carpools/any/join", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var resp handler.ErrorResponse
	decode(t, w, &resp)
	if resp.Success || resp.Message != "Missing X-User-ID header" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateEndpoint_InvalidInput(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)

	w := s.do(t, http.MethodPost, "/v1/carpools", "driver", map[string]any{
		"departure_city":   "Paris",
		"arrival_city":     "Lyon",
		"total_seats":      12,
		"price_per_person": 20,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp handler.ErrorResponse
	decode(t, w, &resp)
	if resp.Message != service.ErrInvalidSeats.Error() {
		t.Errorf("expected %q, got %q", service.ErrInvalidSeats.Error(), resp.Message)
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.addUser(t, "alice", 50)
	carpoolID := s.createCarpool(t, "driver", 3, 20)

	for _, step := range []struct{ path, user string }{
		{"/join", "alice"},
		{"/start", "driver"},
		{"/complete", "driver"},
	} {
		if w := s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+step.path, step.user, nil); w.Code != http.StatusOK {
			t.Fatalf("%s failed with %d: %s", step.path, w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/validate", "alice", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without trip_ok, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/validate", "alice", map[string]any{"trip_ok": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/v1/users/driver", "", nil)
	var driver handler.UserResponse
	decode(t, w, &driver)
	if driver.Credits != 18 {
		t.Errorf("expected driver credits 18, got %d", driver.Credits)
	}

	w = s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/validate", "alice", map[string]any{"trip_ok": false})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on second judgement, got %d", w.Code)
	}
}

func TestParticipationsEndpoint_DriverOnly(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.addUser(t, "alice", 50)
	carpoolID := s.createCarpool(t, "driver", 3, 20)
	s.do(t, http.MethodPost, "/v1/carpools/"+carpoolID+"/join", "alice", nil)

	w := s.do(t, http.MethodGet, "/v1/carpools/"+carpoolID+"/participations", "driver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var participations []handler.ParticipationResponse
	decode(t, w, &participations)
	if len(participations) != 1 || participations[0].UserID != "alice" {
		t.Errorf("unexpected participations %+v", participations)
	}

	w = s.do(t, http.MethodGet, "/v1/carpools/"+carpoolID+"/participations", "alice", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for passenger, got %d", w.Code)
	}
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name":  "Alice",
		"email": "alice@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var user handler.UserResponse
	decode(t, w, &user)
	if user.Credits != domain.DefaultSignupCredits {
		t.Errorf("expected %d credits, got %d", domain.DefaultSignupCredits, user.Credits)
	}

	w = s.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name":  "Alice",
		"email": "alice@example.com",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/v1/users/"+user.ID+"/transactions", "", nil)
	var txs []handler.TransactionResponse
	decode(t, w, &txs)
	if len(txs) != 1 || txs[0].Type != string(domain.CreditSignupBonus) {
		t.Errorf("unexpected transactions %+v", txs)
	}

	w = s.do(t, http.MethodGet, "/v1/users/ghost", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListOpenEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.addUser(t, "driver", 0)
	s.createCarpool(t, "driver", 3, 20)
	s.createCarpool(t, "driver", 2, 15)

	w := s.do(t, http.MethodGet, "/v1/carpools?limit=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var carpools []handler.CarpoolResponse
	decode(t, w, &carpools)
	if len(carpools) != 1 {
		t.Errorf("expected 1 carpool with limit=1, got %d", len(carpools))
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, map[string]handler.HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
		})

		w := s.do(t, http.MethodGet, "/health", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var resp handler.HealthResponse
		decode(t, w, &resp)
		if resp.Status != "ok" || resp.Services["postgres"] != "healthy" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		s := newTestServer(t, map[string]handler.HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		})

		w := s.do(t, http.MethodGet, "/health", "", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}

		var resp handler.HealthResponse
		decode(t, w, &resp)
		if resp.Status != "degraded" || resp.Services["redis"] != "unhealthy: connection refused" {
			t.Errorf("unexpected response %+v", resp)
		}
	})
}
