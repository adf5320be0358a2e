package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"AlphaBot/internal/client/botapi"
	"AlphaBot/internal/domain/models"
	xhttp "AlphaBot/pkg/http"
	"AlphaBot/pkg/util"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "botctl"
	app.Usage = "command line client for the AlphaBot API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "server, s",
			Value:  "http://localhost:8080",
			Usage:  "API base URL",
			EnvVar: "ALPHABOT_URL",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: 10 * time.Second,
			Usage: "request timeout",
		},
	}

	app.Commands = []cli.Command{
		initCMD,
		listCMD,
		getCMD,
		historyCMD,
		submitCMD,
		resolveCMD,
		followCMD,
		unfollowCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	initCMD = cli.Command{
		Name:      "init",
		Usage:     "create a bot",
		ArgsUsage: "<bot_id>",
		Action:    withBot(func(ctx context.Context, c *botapi.Client, id string, _ *cli.Context) (interface{}, error) { return c.InitBot(ctx, id) }),
	}
	listCMD = cli.Command{
		Name:  "list",
		Usage: "list bot ids",
		Action: func(cc *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), cc.GlobalDuration("timeout"))
			defer cancel()
			ids, err := client(cc).List(ctx)
			if err != nil {
				return err
			}
			return printJSON(ids)
		},
	}
	getCMD = cli.Command{
		Name:      "get",
		Usage:     "show a bot's latest signal, accuracy and followers",
		ArgsUsage: "<bot_id>",
		Action:    withBot(func(ctx context.Context, c *botapi.Client, id string, _ *cli.Context) (interface{}, error) { return c.Get(ctx, id) }),
	}
	historyCMD = cli.Command{
		Name:      "history",
		Usage:     "list logged signals, newest first",
		ArgsUsage: "<bot_id>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "from", Usage: "start time (RFC3339, unix s or ms, now)"},
			cli.StringFlag{Name: "to", Usage: "end time (RFC3339, unix s or ms, now)"},
			cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: withBot(historyAction),
	}
	submitCMD = cli.Command{
		Name:      "submit",
		Usage:     "submit a prediction",
		ArgsUsage: "<bot_id>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "at", Value: "now", Usage: "signal time (RFC3339, unix s or ms, now)"},
			cli.StringFlag{Name: "action, a", Usage: "BUY, SELL or HOLD"},
			cli.StringFlag{Name: "price, p", Usage: "predicted price"},
			cli.Float64Flag{Name: "confidence, c", Value: 0.5, Usage: "probability in [0,1]"},
			cli.StringFlag{Name: "reasoning, r"},
		},
		Action: withBot(submitAction),
	}
	resolveCMD = cli.Command{
		Name:      "resolve",
		Usage:     "resolve the pending prediction",
		ArgsUsage: "<bot_id>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "at", Usage: "timestamp of the pending signal (RFC3339, unix s or ms)"},
			cli.StringFlag{Name: "price, p", Usage: "observed price"},
		},
		Action: withBot(resolveAction),
	}
	followCMD = cli.Command{
		Name:      "follow",
		Usage:     "add a follower",
		ArgsUsage: "<bot_id>",
		Action:    withBot(func(ctx context.Context, c *botapi.Client, id string, _ *cli.Context) (interface{}, error) { return c.Follow(ctx, id) }),
	}
	unfollowCMD = cli.Command{
		Name:      "unfollow",
		Usage:     "remove a follower",
		ArgsUsage: "<bot_id>",
		Action:    withBot(func(ctx context.Context, c *botapi.Client, id string, _ *cli.Context) (interface{}, error) { return c.Unfollow(ctx, id) }),
	}
)

type botAction func(ctx context.Context, c *botapi.Client, id string, cc *cli.Context) (interface{}, error)

func withBot(fn botAction) func(*cli.Context) error {
	return func(cc *cli.Context) error {
		id := cc.Args().First()
		if id == "" {
			return cli.NewExitError("bot_id argument is required", 2)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cc.GlobalDuration("timeout"))
		defer cancel()

		out, err := fn(ctx, client(cc), id, cc)
		if err != nil {
			return describe(err)
		}
		return printJSON(out)
	}
}

func historyAction(ctx context.Context, c *botapi.Client, id string, cc *cli.Context) (interface{}, error) {
	now := time.Now()
	from, err := util.ParseMillis(cc.String("from"), 0, now)
	if err != nil {
		return nil, err
	}
	to, err := util.ParseMillis(cc.String("to"), 0, now)
	if err != nil {
		return nil, err
	}
	return c.History(ctx, id, from, to, cc.Int("limit"))
}

func submitAction(ctx context.Context, c *botapi.Client, id string, cc *cli.Context) (interface{}, error) {
	ts, err := util.ParseMillis(cc.String("at"), 0, time.Now())
	if err != nil {
		return nil, err
	}
	action, err := models.ParseAction(cc.String("action"))
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(cc.String("price"))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	confidence := cc.Float64("confidence")
	return c.Submit(ctx, id, models.SubmitPredictionRequest{
		Timestamp:      ts,
		Action:         action,
		PredictedPrice: price,
		Confidence:     &confidence,
		Reasoning:      cc.String("reasoning"),
	})
}

func resolveAction(ctx context.Context, c *botapi.Client, id string, cc *cli.Context) (interface{}, error) {
	if cc.String("at") == "" {
		return nil, fmt.Errorf("--at is required")
	}
	ts, err := util.ParseMillis(cc.String("at"), 0, time.Now())
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(cc.String("price"))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	return c.Resolve(ctx, id, models.ResolveSignalRequest{Timestamp: ts, ActualPrice: price})
}

func client(cc *cli.Context) *botapi.Client {
	return botapi.New(cc.GlobalString("server"), xhttp.WithTimeout(cc.GlobalDuration("timeout")))
}

// describe turns API errors into a one-line message with a non-zero exit code.
func describe(err error) error {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		msg := fmt.Sprintf("%d %s: %s", appErr.Status, appErr.Code, appErr.Message)
		if appErr.Field != "" {
			msg += " (field " + appErr.Field + ")"
		}
		return cli.NewExitError(msg, 1)
	}
	return err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
