package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/safety"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockSafety struct {
	status      domain.SafetyStatus
	killReason  string
	resetErr    error
	resetCalled *bool
	updateErr   error
	lastUpdate  domain.SafetyConfigUpdate
}

func (m *mockSafety) Status() domain.SafetyStatus { return m.status }

func (m *mockSafety) ActivateKillSwitch(ctx context.Context, reason string) {
	m.killReason = reason
	m.status.State.KillSwitchActive = true
	m.status.State.KillSwitchReason = reason
}

func (m *mockSafety) ResetKillSwitch(ctx context.Context, adminOverride bool) error {
	m.resetCalled = &adminOverride
	return m.resetErr
}

func (m *mockSafety) UpdateConfig(ctx context.Context, upd domain.SafetyConfigUpdate) (domain.SafetyConfig, error) {
	m.lastUpdate = upd
	if m.updateErr != nil {
		return m.status.Config, m.updateErr
	}
	cfg := m.status.Config
	if upd.DailyLossLimitPct != nil {
		cfg.DailyLossLimitPct = *upd.DailyLossLimitPct
	}
	return cfg, nil
}

type mockBots struct {
	activated   []string
	deactivated []string
	err         error
}

func (m *mockBots) Activate(ctx context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.activated = append(m.activated, id)
	return nil
}

func (m *mockBots) Deactivate(ctx context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newTestServer(token string) (*Server, *mockSafety, *mockBots) {
	sc := &mockSafety{status: domain.SafetyStatus{Config: safety.DefaultConfig(), TradingAllowed: true}}
	bots := &mockBots{}
	srv := NewServer(Config{Token: token, Gatherer: prometheus.NewRegistry()}, sc, bots, &mockLogger{})
	return srv, sc, bots
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer("")

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSafetyStatus(t *testing.T) {
	srv, _, _ := newTestServer("")

	rec := do(t, srv, http.MethodGet, "/safety/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status domain.SafetyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.TradingAllowed)
	assert.Equal(t, 0.05, status.Config.DailyLossLimitPct)
}

func TestActivateKillSwitch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"with reason", `{"reason":"exchange outage"}`, http.StatusOK},
		{"missing reason", `{}`, http.StatusBadRequest},
		{"malformed", `{"reason":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sc, _ := newTestServer("")
			rec := do(t, srv, http.MethodPost, "/safety/kill-switch", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "manual: exchange outage", sc.killReason)
			} else {
				assert.Empty(t, sc.killReason)
			}
		})
	}
}

func TestResetKillSwitch(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		resetErr     error
		wantCode     int
		wantOverride bool
	}{
		{"override", `{"admin_override":true}`, nil, http.StatusOK, true},
		{"same day without override", `{"admin_override":false}`, safety.ErrResetNotAllowed, http.StatusConflict, false},
		{"empty body", ``, safety.ErrResetNotAllowed, http.StatusConflict, false},
		{"store failure", `{"admin_override":true}`, fmt.Errorf("boom"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sc, _ := newTestServer("")
			sc.resetErr = tt.resetErr
			rec := do(t, srv, http.MethodPost, "/safety/reset", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			require.NotNil(t, sc.resetCalled)
			assert.Equal(t, tt.wantOverride, *sc.resetCalled)
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	srv, sc, _ := newTestServer("")

	rec := do(t, srv, http.MethodPatch, "/safety/config", `{"daily_loss_limit_pct":0.03}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sc.lastUpdate.DailyLossLimitPct)
	assert.Nil(t, sc.lastUpdate.MaxPortfolioHeat)

	var cfg domain.SafetyConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.03, cfg.DailyLossLimitPct)
	assert.Equal(t, 0.10, cfg.MaxPositionSizePct)

	sc.updateErr = fmt.Errorf("%w: max_slippage_pct", safety.ErrInvalidConfig)
	rec = do(t, srv, http.MethodPatch, "/safety/config", `{"max_slippage_pct":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBotLifecycle(t *testing.T) {
	srv, _, bots := newTestServer("")

	rec := do(t, srv, http.MethodPost, "/bots/bot-1/activate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"bot-1","status":"active"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/bots/bot-1/deactivate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bot-1"}, bots.activated)
	assert.Equal(t, []string{"bot-1"}, bots.deactivated)

	bots.err = fmt.Errorf("Activate failed: %w", ports.ErrNotFound)
	rec = do(t, srv, http.MethodPost, "/bots/ghost/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	bots.err = fmt.Errorf("db down")
	rec = do(t, srv, http.MethodPost, "/bots/bot-2/deactivate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTokenGuard(t *testing.T) {
	srv, _, _ := newTestServer("s3cret")

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/safety/status", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/safety/status", "", tokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/safety/status", "", tokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
}
