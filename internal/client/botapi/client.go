// Package botapi is a typed client for the bot HTTP API.
package botapi

import (
	"context"
	"net/url"
	"strconv"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/usecase"
	xhttp "AlphaBot/pkg/http"
)

type Client struct {
	http *xhttp.Client
}

// New returns a client for the API at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...xhttp.ClientOption) *Client {
	opts = append([]xhttp.ClientOption{xhttp.WithBaseURL(baseURL)}, opts...)
	return &Client{http: xhttp.NewClient(opts...)}
}

func botPath(id string, suffix string) string {
	return "/api/bots/" + url.PathEscape(id) + suffix
}

func (c *Client) InitBot(ctx context.Context, id string) (models.BotView, error) {
	var view models.BotView
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    "/api/bots",
		Body:   models.InitBotRequest{BotID: id},
	}, &view)
	return view, err
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	var out struct {
		Rows []string `json:"rows"`
	}
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: "/api/bots"}, &out)
	return out.Rows, err
}

func (c *Client) Get(ctx context.Context, id string) (models.BotView, error) {
	var view models.BotView
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: botPath(id, "")}, &view)
	return view, err
}

func (c *Client) History(ctx context.Context, id string, from, to int64, limit int) ([]models.SignalView, error) {
	q := map[string][]string{}
	if from > 0 {
		q["from"] = []string{strconv.FormatInt(from, 10)}
	}
	if to > 0 {
		q["to"] = []string{strconv.FormatInt(to, 10)}
	}
	if limit > 0 {
		q["limit"] = []string{strconv.Itoa(limit)}
	}
	var out struct {
		Rows []models.SignalView `json:"rows"`
	}
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         botPath(id, "/signals"),
		QueryParams: q,
	}, &out)
	return out.Rows, err
}

func (c *Client) Submit(ctx context.Context, id string, req models.SubmitPredictionRequest) (models.BotView, error) {
	var view models.BotView
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    botPath(id, "/predictions"),
		Body:   req,
	}, &view)
	return view, err
}

func (c *Client) Resolve(ctx context.Context, id string, req models.ResolveSignalRequest) (usecase.ResolveResult, error) {
	var res usecase.ResolveResult
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    botPath(id, "/resolutions"),
		Body:   req,
	}, &res)
	return res, err
}

func (c *Client) Follow(ctx context.Context, id string) (models.BotView, error) {
	var view models.BotView
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: botPath(id, "/followers")}, &view)
	return view, err
}

func (c *Client) Unfollow(ctx context.Context, id string) (models.BotView, error) {
	var view models.BotView
	err := c.http.SendAPI(ctx, &xhttp.RequestOptions{Method: xhttp.MethodDelete, URL: botPath(id, "/followers")}, &view)
	return view, err
}
