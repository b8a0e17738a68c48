package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/auth"
	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository/memory"
	"github.com/Freeeeeet/booking_api/internal/service"
)

var testLocation = time.FixedZone("ICT", 7*60*60)

type testAPI struct {
	router      *gin.Engine
	store       *memory.Store
	tokens      *auth.TokenManager
	admin       *model.User
	customer    *model.User
	technicians []*model.User
	serviceID   int64
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()

	store := memory.New()
	stores := service.Stores{Tx: store, Appointments: store, Users: store, Services: store, Ratings: store}
	policy := service.DefaultTimePolicy(testLocation)
	logger := zap.NewNop()

	queries := service.NewQueryService(stores, policy, logger)
	appointments := service.NewAppointmentService(stores, policy, service.DefaultSchedulerConfig(), queries, nil, nil, logger).
		WithClock(func() time.Time { return time.Date(2025, time.June, 2, 9, 0, 0, 0, testLocation) })
	ratings := service.NewRatingService(stores, logger)

	tokens, err := auth.NewTokenManager("test-secret", "bookingd", time.Hour)
	require.NoError(t, err)

	api := &testAPI{store: store, tokens: tokens}
	api.admin = store.AddUser(&model.User{Username: "admin", Name: "Admin", Role: model.RoleAdmin})
	api.customer = store.AddUser(&model.User{Username: "customer", Name: "Customer", Email: "c@example.com", Role: model.RoleCustomer})
	for _, name := range []string{"techa", "techb"} {
		api.technicians = append(api.technicians, store.AddUser(&model.User{Username: name, Name: name, Role: model.RoleTechnician}))
	}
	api.serviceID = store.AddService(&model.Service{Name: "Standard service", EstimatedDurationMinutes: 20}).ID

	h := NewHandler(appointments, queries, ratings, store, tokens, logger)
	api.router = NewRouter(h, opts)
	return api
}

func (a *testAPI) token(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := a.tokens.Issue(user.ID, string(user.Role))
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path string, user *model.User, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, user))
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func (a *testAPI) book(t *testing.T, start string) int64 {
	t.Helper()
	rec, payload := a.do(t, http.MethodPost, "/api/bookings", a.customer, gin.H{"service_id": a.serviceID, "start_time": start})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := payload["appointment"].(map[string]any)
	return int64(appt["id"].(float64))
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t, Options{ReadyChecks: []ReadyCheck{
		{Name: "kafka", Check: func(context.Context) error { return errors.New("no brokers") }},
	}})

	rec, _ := api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, payload := api.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no brokers", payload["failures"].(map[string]any)["kafka"])
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec, _ := api.do(t, http.MethodGet, "/api/services", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ghost := &model.User{ID: 999, Role: model.RoleAdmin}
	rec, _ = api.do(t, http.MethodGet, "/api/services", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, payload := api.do(t, http.MethodGet, "/api/services", api.customer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["services"], 1)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateBooking(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec, payload := api.do(t, http.MethodPost, "/api/bookings", api.customer, gin.H{
		"service_id": api.serviceID,
		"start_time": "2025-06-02 10:00:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appt := payload["appointment"].(map[string]any)
	assert.Equal(t, "pending", appt["status"])
	assert.Equal(t, float64(api.technicians[0].ID), appt["technician_id"])
	assert.Equal(t, float64(api.customer.ID), appt["customer_id"])
}

func TestCreateBookingErrors(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec, _ := api.do(t, http.MethodPost, "/api/bookings", api.admin, gin.H{"service_id": api.serviceID, "start_time": "2025-06-02 10:00:00"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/bookings", api.customer, gin.H{"start_time": "2025-06-02 10:00:00"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, payload := api.do(t, http.MethodPost, "/api/bookings", api.customer, gin.H{"service_id": api.serviceID, "start_time": "2025-06-02 10:10:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, payload["message"])

	rec, _ = api.do(t, http.MethodPost, "/api/bookings", api.customer, gin.H{"service_id": 404, "start_time": "2025-06-02 10:00:00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotCapacityOverHTTP(t *testing.T) {
	api := newTestAPI(t, Options{})

	api.book(t, "2025-06-02 10:00:00")
	api.book(t, "2025-06-02 10:00:00")

	rec, _ := api.do(t, http.MethodPost, "/api/bookings", api.customer, gin.H{"service_id": api.serviceID, "start_time": "2025-06-02 10:00:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, Options{})
	id := api.book(t, "2025-06-02 10:00:00")

	rec, _ := api.do(t, http.MethodGet, "/api/appointments", api.customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, payload := api.do(t, http.MethodGet, "/api/appointments", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["appointments"], 1)

	rec, payload = api.do(t, http.MethodGet, "/api/technicians", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["technicians"], 2)

	path := "/api/appointments/" + itoa(id) + "/update-status"
	rec, payload = api.do(t, http.MethodPost, path, api.admin, gin.H{"status": "da_xac_nhan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", payload["appointment"].(map[string]any)["status"])

	rec, _ = api.do(t, http.MethodPost, path, api.admin, gin.H{"status": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/appointments/999/update-status", api.admin, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/appointments/abc/update-status", api.admin, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeTechnicianOverHTTP(t *testing.T) {
	api := newTestAPI(t, Options{})
	first := api.book(t, "2025-06-02 10:00:00")
	second := api.book(t, "2025-06-02 10:00:00")

	rec, _ := api.do(t, http.MethodPost, "/api/appointments/"+itoa(first)+"/change-technician", api.admin,
		gin.H{"new_technician_id": api.technicians[1].ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/appointments/"+itoa(second)+"/change-technician", api.admin,
		gin.H{"new_technician_id": api.customer.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/appointments/"+itoa(second)+"/change-technician", api.admin, gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTechnicianAppointmentsAccess(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.book(t, "2025-06-02 10:00:00")

	own := "/api/technicians/" + itoa(api.technicians[0].ID) + "/appointments?date=2025-06-02"

	rec, payload := api.do(t, http.MethodGet, own, api.technicians[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["appointments"], 1)

	rec, _ = api.do(t, http.MethodGet, own, api.technicians[1], nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodGet, own, api.customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, payload = api.do(t, http.MethodGet, "/api/technicians/"+itoa(api.technicians[0].ID)+"/appointments?date=2025-06-03", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["appointments"], 0)

	rec, _ = api.do(t, http.MethodGet, "/api/technicians/"+itoa(api.customer.ID)+"/appointments", api.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatingsOverHTTP(t *testing.T) {
	api := newTestAPI(t, Options{})
	id := api.book(t, "2025-06-02 10:00:00")

	rec, payload := api.do(t, http.MethodPost, "/api/ratings", api.customer, gin.H{"appointment_id": id, "rating": 5, "comment": "  great  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "great", payload["rating"].(map[string]any)["comment"])

	rec, _ = api.do(t, http.MethodPost, "/api/ratings", api.customer, gin.H{"appointment_id": id, "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/ratings", api.customer, gin.H{"appointment_id": 999, "rating": 4})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, payload = api.do(t, http.MethodGet, "/api/ratings", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["ratings"], 1)
}

func TestUserBookings(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.book(t, "2025-06-02 10:00:00")
	api.book(t, "2025-06-02 11:00:00")

	rec, payload := api.do(t, http.MethodGet, "/api/user/bookings", api.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["bookings"], 2)

	rec, payload = api.do(t, http.MethodGet, "/api/user/bookings", api.technicians[1], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["bookings"], 0)
}

func TestLocalRateLimit(t *testing.T) {
	api := newTestAPI(t, Options{Limiter: NewLocalLimiter(1)})

	rec, _ := api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	api := newTestAPI(t, Options{Limiter: NewRedisLimiter(rdb, 1, time.Minute, "test")})

	rec, _ := api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, internalErrorMessage, ErrorMessage(errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(service.ErrPersistence))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrCapacityExceeded))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrNoTechnicianAvailable))
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"https://a.example", "*"}).AllowAllOrigins)

	cfg := corsConfig([]string{" https://a.example ", ""})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowOrigins)
}

func itoa(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
