package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/metrics"
	"hospital-booking-server/internal/repository/memory"
	"hospital-booking-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *services.Services
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Detail  json.RawMessage `json:"detail"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clinic := config.DefaultClinicConfig()
	now, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-02 09:00", clinic.Location)
	require.NoError(t, err)
	clock := fixedClock{t: now}

	cfg := &config.Config{
		Origin:                    "http://localhost:5173",
		Environment:               "development",
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      60,
		JWTRefreshExpirationHours: 24,
		Clinic:                    clinic,
	}
	store := memory.New()
	svc := services.New(services.Deps{Store: store, Clinic: clinic, Clock: clock, Log: zap.NewNop()}, cfg)

	_, _, err = svc.Accounts.SeedFirstAdmin(context.Background(), "admin", "password")
	require.NoError(t, err)

	router := NewRouter(Deps{
		Services: svc,
		Store:    store,
		Config:   cfg,
		Log:      zap.NewNop(),
		Metrics:  metrics.New(),
		Clock:    clock,
	})
	return &testServer{t: t, router: router, svc: svc}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var pair map[string]string
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &pair))
	return pair["access_token"]
}

// data decodes the envelope's data into dst and returns the envelope.
func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func TestTokenEndpoint_ReturnsBarePair(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"username": {"admin"}, "password": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.NotContains(t, body, "status")

	form.Set("password", "wrong")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect username or password")
}

func TestAuthAndRoleGuards(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/profile/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/register/patient", "", map[string]string{
		"name": "Lin", "password": "secret1", "dob": "1990-01-01",
		"phone": "0912345678", "email": "lin@example.com", "card_number": "C-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	patient := s.login("lin@example.com", "secret1")

	w = s.do(http.MethodGet, "/api/v1/admins", patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/profile/me", patient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, "patient", me["role"])
}

func TestRegisterPatient_ValidationDetail(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/register/patient", "", map[string]string{
		"name": "Lin", "password": "secret1", "dob": "1990-01-01",
		"phone": "12345", "email": "lin@example.com", "card_number": "C-1",
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w, nil)
	var detail []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Detail, &detail))
	require.Len(t, detail, 1)
	assert.Equal(t, "Phone number must be in the format 09xxxxxxxx", detail[0]["msg"])
}

func TestBookingAndQueueFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "password")

	w := s.do(http.MethodPost, "/api/v1/doctors", admin, map[string]string{
		"name": "Dr. Chen", "login_id": "drchen", "password": "secret1", "specialty": "family medicine",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doctor struct {
		ID string `json:"id"`
	}
	decode(t, w, &doctor)

	w = s.do(http.MethodPost, "/api/v1/schedules", admin, map[string]interface{}{
		"doctor_id": doctor.ID, "date": "2026-03-02", "time_period": "morning", "max_patients": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var schedule struct {
		ID string `json:"id"`
	}
	decode(t, w, &schedule)

	w = s.do(http.MethodPost, "/api/v1/schedules", admin, map[string]interface{}{
		"doctor_id": doctor.ID, "date": "2026-03-02", "time_period": "morning",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/schedules/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/register/patient", "", map[string]string{
		"name": "Lin", "password": "secret1", "dob": "1990-01-01",
		"phone": "0912345678", "email": "lin@example.com", "card_number": "C-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	patient := s.login("lin@example.com", "secret1")

	w = s.do(http.MethodPost, "/api/v1/patient/appointments", patient, map[string]string{
		"doctor_id": doctor.ID, "date": "2026-03-02", "time_period": "morning",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &appt)
	assert.Equal(t, "scheduled", appt.Status)

	w = s.do(http.MethodPost, "/api/v1/patient/appointments", patient, map[string]string{
		"doctor_id": doctor.ID, "date": "2026-03-02", "time_period": "morning",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/checkin/"+appt.ID, patient, map[string]string{"method": "online"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ticket struct {
		TicketNumber string `json:"ticket_number"`
	}
	decode(t, w, &ticket)
	assert.Equal(t, "A001", ticket.TicketNumber)

	doctorToken := s.login("drchen", "secret1")
	w = s.do(http.MethodPost, "/api/v1/doctor/schedules/"+schedule.ID+"/open-clinic", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/checkin/queue/"+appt.ID, patient, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status services.QueueStatus
	decode(t, w, &status)
	assert.True(t, status.CheckedIn)
	assert.Equal(t, "A001", status.MyPosition)
	assert.Equal(t, 0, status.WaitingCount)

	w = s.do(http.MethodPost, "/api/v1/doctor/schedules/"+schedule.ID+"/call-next-patient", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var called services.TicketResult
	decode(t, w, &called)
	assert.Equal(t, "A001", called.TicketNumber)

	w = s.do(http.MethodGet, "/api/v1/patient/appointments", patient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []struct {
		Status string `json:"status"`
	}
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "called", mine[0].Status)
}

func TestAuditExport(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "password")

	w := s.do(http.MethodPost, "/api/v1/doctors", admin, map[string]string{
		"name": "Dr. Chen", "login_id": "drchen", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/admin/audit-logs/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_logs_20260302_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = s.do(http.MethodGet, "/api/v1/admin/audit-logs?start_date=03/01/2026", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
