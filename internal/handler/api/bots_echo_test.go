package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/repository"
	"AlphaBot/internal/service/lock"
	"AlphaBot/internal/service/notify"
	"AlphaBot/internal/service/ratelimit"
	"AlphaBot/internal/services/prediction"
	"AlphaBot/internal/usecase"
	"AlphaBot/pkg/cache"
	xhttp "AlphaBot/pkg/http"
	xlogger "AlphaBot/pkg/logger"
	"AlphaBot/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	srv  *xhttp.Server
	hub  *notify.Hub
	bots *BotsEchoHandler
}

func newTestAPI(t *testing.T, limiter *ratelimit.Limiter) *testAPI {
	t.Helper()
	mc := cache.NewMemoryCache()
	hub := notify.NewHub(16)
	t.Cleanup(func() {
		_ = hub.Close()
		_ = mc.Close()
	})

	reg := prometheus.NewRegistry()
	d := usecase.NewBotDispatcher(
		repository.NewCacheBotStore(mc),
		repository.NewMemorySignalLog(),
		hub,
		lock.NewKeyedMutex(),
		metrics.NewWithRegisterer(reg),
		prediction.NewMachine(prediction.NewAggregator(), prediction.DefaultResolutionPolicy()),
		xlogger.Nop(),
	)
	h := NewBotsEchoHandler(xlogger.Nop(), d, limiter, hub)
	srv := xhttp.NewServer([]xhttp.Handler{h}, xhttp.WithMetrics(reg, reg))
	return &testAPI{srv: srv, hub: hub, bots: h}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, xhttp.RawAPIResponse) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.srv.Echo().ServeHTTP(rec, req)

	var env xhttp.RawAPIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeErrors(t *testing.T, env xhttp.RawAPIResponse) []xhttp.AppError {
	t.Helper()
	var errs []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	return errs
}

func TestBotsAPI_Lifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ERR_BOT_EXISTS", decodeErrors(t, env)[0].Code)

	code, _ = api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
		`{"timestamp":1000,"action":"BUY","predicted_price":2600,"confidence":0.8,"reasoning":"breakout"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env = api.do(t, http.MethodPost, "/api/bots/alpha/resolutions", `{"timestamp":1000,"actual_price":"2550"}`)
	require.Equal(t, http.StatusOK, code)
	var res usecase.ResolveResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Applied)
	require.NotNil(t, res.Correct)
	assert.False(t, *res.Correct)
	assert.Equal(t, uint64(1), res.Bot.Accuracy24h.TotalPredictions)

	code, env = api.do(t, http.MethodPost, "/api/bots/alpha/resolutions", `{"timestamp":1000,"actual_price":"2550"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ERR_ALREADY_RESOLVED", decodeErrors(t, env)[0].Code)

	code, _ = api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/bots/alpha", "")
	require.Equal(t, http.StatusOK, code)
	var view models.BotView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, uint64(1), view.FollowerCount)
	require.NotNil(t, view.LatestSignal)
	assert.Equal(t, "2600", view.LatestSignal.PredictedPrice)
	assert.NotContains(t, string(env.Data), "sum_squared_errors")

	code, env = api.do(t, http.MethodGet, "/api/bots/alpha/signals?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.SignalView `json:"rows"`
		Total int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, models.StatusResolved, list.Rows[0].Status)

	code, _ = api.do(t, http.MethodDelete, "/api/bots/alpha/followers", "")
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/bots", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"alpha"`)
}

func TestBotsAPI_Errors(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)

	t.Run("unknown bot", func(t *testing.T) {
		code, env := api.do(t, http.MethodGet, "/api/bots/ghost", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "ERR_NOT_FOUND", decodeErrors(t, env)[0].Code)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
			`{"timestamp":1,"action":"SELL","predicted_price":10,"confidence_bps":10001}`)
		assert.Equal(t, http.StatusBadRequest, code)
		e := decodeErrors(t, env)[0]
		assert.Equal(t, "ERR_OUT_OF_RANGE", e.Code)
		assert.Equal(t, "confidence", e.Field)
	})

	t.Run("unrepresentable numbers", func(t *testing.T) {
		for path, body := range map[string]string{
			"/api/bots/alpha/predictions": `{"timestamp":1,"action":"BUY","predicted_price":"18446744073709.551617","confidence":0.5}`,
			"/api/bots/alpha/resolutions": `{"timestamp":1,"actual_price":"18446744073709.552616"}`,
		} {
			code, env := api.do(t, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, code, path)
			assert.Equal(t, "ERR_OUT_OF_RANGE", decodeErrors(t, env)[0].Code, path)
		}
		code, env := api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
			`{"timestamp":1,"action":"BUY","predicted_price":10,"confidence":1.00005}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "confidence", decodeErrors(t, env)[0].Field)
	})

	t.Run("reasoning too long", func(t *testing.T) {
		body := `{"timestamp":1,"action":"HOLD","predicted_price":10,"confidence":0.5,"reasoning":"` +
			strings.Repeat("x", 513) + `"}`
		code, env := api.do(t, http.MethodPost, "/api/bots/alpha/predictions", body)
		assert.Equal(t, http.StatusBadRequest, code)
		e := decodeErrors(t, env)[0]
		assert.Equal(t, "ERR_TOO_LONG", e.Code)
		assert.Equal(t, "reasoning", e.Field)
	})

	t.Run("missing confidence", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
			`{"timestamp":1,"action":"BUY","predicted_price":10}`)
		assert.Equal(t, http.StatusBadRequest, code)
		var verrs []xhttp.ValidationError
		require.NoError(t, json.Unmarshal(env.Data, &verrs))
		assert.Equal(t, "ERR_REQUIRED_WITHOUT", verrs[0].Code)
		assert.Equal(t, "confidence", verrs[0].Field)
	})

	t.Run("timestamp must advance", func(t *testing.T) {
		code, _ := api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
			`{"timestamp":50,"action":"BUY","predicted_price":10,"confidence":0.5}`)
		require.Equal(t, http.StatusCreated, code)
		code, env := api.do(t, http.MethodPost, "/api/bots/alpha/predictions",
			`{"timestamp":50,"action":"BUY","predicted_price":10,"confidence":0.5}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "ERR_ORDERING", decodeErrors(t, env)[0].Code)
	})

	t.Run("history range", func(t *testing.T) {
		code, _ := api.do(t, http.MethodGet, "/api/bots/alpha/signals?from=10&to=5", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestBotsAPI_RateLimit(t *testing.T) {
	api := newTestAPI(t, ratelimit.New(1, 0.001))
	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)

	code, _ = api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
	require.Equal(t, http.StatusOK, code)
	code, env := api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "ERR_RATE_LIMITED", decodeErrors(t, env)[0].Code)

	// reads are not limited
	code, _ = api.do(t, http.MethodGet, "/api/bots/alpha", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestBotsAPI_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	rec := httptest.NewRecorder()
	api.srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alphabot_http_requests_total")
}

func TestBotsAPI_Stream(t *testing.T) {
	api := newTestAPI(t, nil)
	ts := httptest.NewServer(api.srv.Echo())
	defer ts.Close()

	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bots/alpha/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot struct {
		Kind string         `json:"kind"`
		Data models.BotView `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Kind)
	assert.Equal(t, "alpha", snapshot.Data.BotID)

	code, _ = api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
	require.Equal(t, http.StatusOK, code)

	var event struct {
		Kind string          `json:"kind"`
		Data models.BotEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "event", event.Kind)
	assert.Equal(t, models.EventFollowerAdded, event.Data.Type)
	assert.Equal(t, uint64(1), event.Data.FollowerCount)
}

func TestBotsAPI_StreamUnknownBot(t *testing.T) {
	api := newTestAPI(t, nil)
	ts := httptest.NewServer(api.srv.Echo())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bots/ghost/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBotsAPI_StreamChangeDuringConnect(t *testing.T) {
	api := newTestAPI(t, nil)
	ts := httptest.NewServer(api.srv.Echo())
	defer ts.Close()

	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)

	// a follower lands after the subscription exists but before the snapshot is read
	api.bots.stream.beforeSnapshot = func() {
		code, _ := api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
		assert.Equal(t, http.StatusOK, code)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bots/alpha/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot struct {
		Kind string         `json:"kind"`
		Data models.BotView `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, uint64(1), snapshot.Data.FollowerCount)

	// the follower event is already in the snapshot; the next frame is the later change
	code, _ = api.do(t, http.MethodPost, "/api/bots/alpha/followers", "")
	require.Equal(t, http.StatusOK, code)

	var event struct {
		Kind string          `json:"kind"`
		Data models.BotEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "event", event.Kind)
	assert.Equal(t, uint64(2), event.Data.FollowerCount)
	assert.Greater(t, event.Data.Version, snapshot.Data.Version)
}

func TestBotsAPI_StreamOrigins(t *testing.T) {
	api := newTestAPI(t, nil)
	WithStreamOrigins([]string{"http://dash.local"})(api.bots)
	ts := httptest.NewServer(api.srv.Echo())
	defer ts.Close()

	code, _ := api.do(t, http.MethodPost, "/api/bots", `{"bot_id":"alpha"}`)
	require.Equal(t, http.StatusCreated, code)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bots/alpha/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://dash.local"}})
	require.NoError(t, err)
	conn.Close()
}
