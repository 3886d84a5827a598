package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/kindyguard/internal/api"
	"github.com/technosupport/kindyguard/internal/auth"
	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/data"
	"github.com/technosupport/kindyguard/internal/eventlog"
	"github.com/technosupport/kindyguard/internal/feed"
	"github.com/technosupport/kindyguard/internal/middleware"
	"github.com/technosupport/kindyguard/internal/session"
	"github.com/technosupport/kindyguard/internal/tokens"
)

// memLogRepo keeps event-log writes in memory for assertions.
type memLogRepo struct {
	entries []data.LogEntry
}

func (m *memLogRepo) Insert(ctx context.Context, e *data.LogEntry) error {
	cp := *e
	cp.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, cp)
	return nil
}

func (m *memLogRepo) List(ctx context.Context, f data.LogFilter) ([]data.LogEntry, int64, error) {
	out := make([]data.LogEntry, 0, len(m.entries))
	var last int64
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		out = append(out, e)
		last = e.ID
	}
	return out, last, nil
}

func (m *memLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type testEnv struct {
	router  http.Handler
	coord   *coordinator.Coordinator
	tokens  *tokens.Manager
	sqlmock sqlmock.Sqlmock
	redis   *miniredis.Miniredis
	logRepo *memLogRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	coord := coordinator.New(coordinator.Config{}, nil)
	t.Cleanup(coord.Close)

	tokenMgr := tokens.NewManager("test-secret")
	blacklist := auth.NewRedisBlacklist(rdb)
	logRepo := &memLogRepo{}
	logSvc := eventlog.NewService(logRepo)

	router := api.NewRouter(api.RouterDeps{
		Auth: &api.AuthHandler{
			Users:     data.UserModel{DB: db},
			Tokens:    tokenMgr,
			Session:   session.NewManager(rdb),
			Blacklist: blacklist,
			Coord:     coord,
		},
		State:    &api.StateHandler{Coord: coord, Tokens: tokenMgr},
		Alerts:   &api.AlertHandler{Coord: coord, Log: logSvc},
		Override: &api.OverrideHandler{Coord: coord, Log: logSvc},
		Status:   &api.StatusHandler{Coord: coord},
		Toasts:   &api.ToastHandler{Coord: coord},
		Events:   &api.EventLogHandler{Log: logSvc},
		JWT:      middleware.NewJWTAuth(tokenMgr, blacklist),
	})

	return &testEnv{
		router:  router,
		coord:   coord,
		tokens:  tokenMgr,
		sqlmock: mock,
		redis:   mr,
		logRepo: logRepo,
	}
}

func (e *testEnv) accessToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.tokens.GenerateAccessToken(uuid.NewString(), "tester", role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) raiseAlert(t *testing.T) *coordinator.Alert {
	t.Helper()
	out, a := e.coord.OnDetectionEvent(&feed.Event{
		EventID:    uuid.New(),
		OccurredAt: time.Now(),
		CameraID:   "cam-1",
		EventType:  feed.EventAlert,
	})
	require.Equal(t, coordinator.OutcomeRaised, out)
	return a
}

// --- Auth ---

func seedUser(t *testing.T, mock sqlmock.Sqlmock, username, password, role string, disabled bool) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{
		"id", "username", "display_name", "role", "password_hash", "is_disabled", "created_at", "updated_at",
	}).AddRow(uuid.New(), username, "王老師", role, hash, disabled, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM users").WithArgs(username).WillReturnRows(rows)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.sqlmock, "teacher", "pass123", "staff", false)

	rec := env.do(t, "POST", "/api/v1/auth/login", "", api.LoginRequest{Username: "teacher", Password: "pass123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, 900, resp.ExpiresIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, "王老師", resp.User.DisplayName)

	snap := env.coord.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "teacher", snap.User.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.sqlmock, "teacher", "pass123", "staff", false)

	rec := env.do(t, "POST", "/api/v1/auth/login", "", api.LoginRequest{Username: "teacher", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.coord.Snapshot().IsAuthenticated)
	assert.True(t, env.redis.Exists("lockout_count:teacher"), "failed attempt recorded")
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.sqlmock, "teacher", "pass123", "staff", true)

	rec := env.do(t, "POST", "/api/v1/auth/login", "", api.LoginRequest{Username: "teacher", Password: "pass123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_LockedOut(t *testing.T) {
	env := newTestEnv(t)
	env.redis.Set("lockout:teacher", "locked")

	// No DB expectation: the lockout check short-circuits before the query.
	rec := env.do(t, "POST", "/api/v1/auth/login", "", api.LoginRequest{Username: "teacher", Password: "pass123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, env.sqlmock.ExpectationsWereMet())
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	refresh, err := env.tokens.GenerateRefreshToken("u1", "teacher", "staff")
	require.NoError(t, err)

	rec := env.do(t, "POST", "/api/v1/auth/refresh", "", api.RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken, "refresh does not rotate the refresh token")

	// An access token is not accepted as a refresh token.
	access := env.accessToken(t, "staff")
	rec = env.do(t, "POST", "/api/v1/auth/refresh", "", api.RefreshRequest{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_IdempotentAndRevoking(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Login(coordinator.User{ID: "u1", Username: "teacher"})

	token := env.accessToken(t, "staff")
	rec := env.do(t, "POST", "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.coord.Snapshot().IsAuthenticated)

	// The revoked token no longer passes the JWT gate.
	rec = env.do(t, "GET", "/api/v1/state", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A second logout without any token is still 204.
	rec = env.do(t, "POST", "/api/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// --- State ---

func TestGetState_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/v1/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/api/v1/state", env.accessToken(t, "staff"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap coordinator.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, coordinator.LinkOnline, snap.SystemStatus.NAS)
}

// --- Alerts ---

func TestDismissAlert_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	a := env.raiseAlert(t)

	rec := env.do(t, "POST", "/api/v1/alerts/"+itoa(a.ID)+"/dismiss", env.accessToken(t, "staff"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, env.coord.Snapshot().ActiveAlert)

	require.Len(t, env.logRepo.entries, 1)
	assert.Equal(t, "alert_dismissed", env.logRepo.entries[0].EventType)
	assert.Equal(t, "tester", env.logRepo.entries[0].Actor)
}

func TestDismissAlert_StaleIDIsBenign(t *testing.T) {
	env := newTestEnv(t)
	a := env.raiseAlert(t)

	rec := env.do(t, "POST", "/api/v1/alerts/999999/dismiss", env.accessToken(t, "staff"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, env.coord.Snapshot().ActiveAlert, "mismatched id must not clear the slot")
	assert.Equal(t, a.ID, env.coord.Snapshot().ActiveAlert.ID)
	assert.Empty(t, env.logRepo.entries, "no dismissal record for a no-op")
}

func TestDismissAlert_BadID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "POST", "/api/v1/alerts/abc/dismiss", env.accessToken(t, "staff"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Override ---

func TestOverride_AdminOnly(t *testing.T) {
	env := newTestEnv(t)

	body := api.ActivateOverrideRequest{DurationMinutes: 30, Reason: "戶外教學"}
	rec := env.do(t, "POST", "/api/v1/override", env.accessToken(t, "staff"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.coord.Snapshot().SystemStatus.OverrideMode.Active)
}

func TestOverride_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.accessToken(t, "admin")

	// Blank reason
	rec := env.do(t, "POST", "/api/v1/override", admin, api.ActivateOverrideRequest{DurationMinutes: 30})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Activate
	rec = env.do(t, "POST", "/api/v1/override", admin, api.ActivateOverrideRequest{DurationMinutes: 30, Reason: "戶外教學"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var win coordinator.OverrideWindow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &win))
	assert.True(t, win.Active)
	assert.Equal(t, 30, win.RemainingMinutes)

	// Double activate
	rec = env.do(t, "POST", "/api/v1/override", admin, api.ActivateOverrideRequest{DurationMinutes: 15, Reason: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// End
	rec = env.do(t, "DELETE", "/api/v1/override", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &win))
	assert.False(t, win.Active)

	// Ending again is tolerated.
	rec = env.do(t, "DELETE", "/api/v1/override", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// One activation + one end in the log.
	var activated, ended int
	for _, e := range env.logRepo.entries {
		switch e.EventType {
		case "override_activated":
			activated++
		case "override_ended":
			ended++
		}
	}
	assert.Equal(t, 1, activated)
	assert.Equal(t, 1, ended)
}

// --- System status ---

func TestStatusPatch(t *testing.T) {
	env := newTestEnv(t)
	admin := env.accessToken(t, "admin")

	offline := coordinator.LinkOffline
	rec := env.do(t, "PATCH", "/api/v1/system/status", admin, coordinator.StatusPatch{NAS: &offline})
	require.Equal(t, http.StatusOK, rec.Code)

	var st coordinator.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, coordinator.LinkOffline, st.NAS)

	// Unknown link state rejected
	req := httptest.NewRequest("PATCH", "/api/v1/system/status", bytes.NewBufferString(`{"nas":"degraded"}`))
	req.Header.Set("Authorization", "Bearer "+admin)
	badRec := httptest.NewRecorder()
	env.router.ServeHTTP(badRec, req)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
	assert.Equal(t, coordinator.LinkOffline, env.coord.Snapshot().SystemStatus.NAS, "bad patch leaves status alone")
}

// --- Toasts ---

func TestToastEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.accessToken(t, "staff")

	rec := env.do(t, "POST", "/api/v1/toasts", token, api.AddToastRequest{Type: coordinator.ToastInfo, Message: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var toast coordinator.Toast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toast))
	assert.NotEmpty(t, toast.ID)
	assert.Equal(t, coordinator.DefaultToastDurationMS, toast.DurationMS)

	rec = env.do(t, "DELETE", "/api/v1/toasts/"+toast.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.coord.Snapshot().Toasts)

	// Unknown id still 204.
	rec = env.do(t, "DELETE", "/api/v1/toasts/ghost", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Bad type rejected
	rec = env.do(t, "POST", "/api/v1/toasts", token, api.AddToastRequest{Type: "fanfare", Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Event log ---

func TestEventsList(t *testing.T) {
	env := newTestEnv(t)
	a := env.raiseAlert(t)

	token := env.accessToken(t, "staff")
	rec := env.do(t, "POST", "/api/v1/alerts/"+itoa(a.ID)+"/dismiss", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/api/v1/events?event_type=alert_dismissed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []struct {
			EventType string `json:"event_type"`
			Actor     string `json:"actor"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "alert_dismissed", resp.Entries[0].EventType)
	assert.Equal(t, "tester", resp.Entries[0].Actor)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
