package api

import (
	"net/http"
	"strconv"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/service/notify"
	"AlphaBot/internal/service/ratelimit"
	"AlphaBot/internal/services/prediction"
	"AlphaBot/internal/usecase"
	xhttp "AlphaBot/pkg/http"
	xlogger "AlphaBot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BotsEchoHandler serves the bot API.
type BotsEchoHandler struct {
	logger     *xlogger.Logger
	dispatcher *usecase.BotDispatcher
	limiter    *ratelimit.Limiter
	stream     *StreamHandler
}

// HandlerOption customises BotsEchoHandler.
type HandlerOption func(*BotsEchoHandler)

// WithStreamOrigins lets browsers from origins open the websocket stream. Without it only
// same-origin (or Origin-less) clients may connect.
func WithStreamOrigins(origins []string) HandlerOption {
	return func(h *BotsEchoHandler) {
		if h.stream != nil {
			h.stream.upgrader.CheckOrigin = checkOrigin(origins)
		}
	}
}

func NewBotsEchoHandler(
	logger *xlogger.Logger,
	dispatcher *usecase.BotDispatcher,
	limiter *ratelimit.Limiter,
	hub *notify.Hub,
	opts ...HandlerOption,
) *BotsEchoHandler {
	h := &BotsEchoHandler{logger: logger, dispatcher: dispatcher, limiter: limiter}
	if hub != nil {
		h.stream = NewStreamHandler(logger, dispatcher, hub)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BotsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/bots")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/signals", h.History)
	g.POST("/:id/predictions", h.Submit, h.rateLimited)
	g.POST("/:id/resolutions", h.Resolve, h.rateLimited)
	g.POST("/:id/followers", h.Follow, h.rateLimited)
	g.DELETE("/:id/followers", h.Unfollow, h.rateLimited)
	if h.stream != nil {
		g.GET("/:id/stream", h.stream.Stream)
	}
}

// rateLimited applies the per-bot token bucket to write routes.
func (h *BotsEchoHandler) rateLimited(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.limiter.Allow(c.Param("id")) {
			h.logger.Warn("bots rate_limited",
				xlogger.String("bot_id", c.Param("id")),
				xlogger.String("remote", c.RealIP()),
			)
			if wait := h.limiter.RetryAfter(); wait > 0 {
				c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(int(wait.Seconds())))
			}
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests for this bot"))
		}
		return next(c)
	}
}

func (h *BotsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *BotsEchoHandler) Create(c echo.Context) error {
	req := &models.InitBotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view, err := h.dispatcher.InitBot(c.Request().Context(), req.BotID)
	if err != nil {
		return h.fail(c, "init", err)
	}
	return xhttp.CreatedResponse(c, view)
}

func (h *BotsEchoHandler) List(c echo.Context) error {
	ids, err := h.dispatcher.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "list", err)
	}
	return xhttp.ListResponse(c, ids, int64(len(ids)))
}

func (h *BotsEchoHandler) Get(c echo.Context) error {
	view, err := h.dispatcher.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *BotsEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.To > 0 && req.To < req.From {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_GTEFIELD",
			Field:   "to",
			Message: "to must be greater than or equal to from",
		}})
	}
	rows, err := h.dispatcher.History(c.Request().Context(), c.Param("id"), req.From, req.To, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BotsEchoHandler) Submit(c echo.Context) error {
	req := &models.SubmitPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	candidate, err := prediction.CandidateFromRequest(req)
	if err != nil {
		return h.fail(c, "submit", err)
	}
	view, err := h.dispatcher.Submit(c.Request().Context(), c.Param("id"), candidate)
	if err != nil {
		return h.fail(c, "submit", err)
	}
	return xhttp.CreatedResponse(c, view)
}

func (h *BotsEchoHandler) Resolve(c echo.Context) error {
	req := &models.ResolveSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actual, err := prediction.ActualPriceFromRequest(req)
	if err != nil {
		return h.fail(c, "resolve", err)
	}
	res, err := h.dispatcher.Resolve(c.Request().Context(), c.Param("id"), req.Timestamp, actual)
	if err != nil {
		return h.fail(c, "resolve", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BotsEchoHandler) Follow(c echo.Context) error {
	view, err := h.dispatcher.AddFollower(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "follow", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *BotsEchoHandler) Unfollow(c echo.Context) error {
	view, err := h.dispatcher.RemoveFollower(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "unfollow", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *BotsEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("bots usecase error",
			xlogger.String("op", op),
			xlogger.String("bot_id", c.Param("id")),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
