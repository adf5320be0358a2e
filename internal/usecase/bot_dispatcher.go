package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AlphaBot/internal/domain/models"
	drepo "AlphaBot/internal/domain/repository"
	"AlphaBot/internal/services/prediction"
	applogger "AlphaBot/pkg/logger"

	"github.com/google/uuid"
)

// Command results reported to metrics.
const (
	resultOK       = "ok"
	resultIgnored  = "ignored"
	resultRejected = "rejected"
	resultError    = "error"
)

// BotDispatcher is the single entry point for bot commands and queries. Every command
// runs under the bot's lock: load, apply the prediction machine, save, append to the
// signal log, publish events.
type BotDispatcher struct {
	store      drepo.BotStore
	signals    drepo.SignalLog
	events     drepo.EventPublisher
	locker     drepo.Locker
	metrics    drepo.Metrics
	machine    *prediction.Machine
	logger     *applogger.Logger
	autoCreate bool
	now        func() time.Time
	newID      func() string
}

// DispatcherOption configures BotDispatcher.
type DispatcherOption func(*BotDispatcher)

// WithAutoCreate makes commands for unknown bots create them instead of failing.
func WithAutoCreate(enabled bool) DispatcherOption {
	return func(d *BotDispatcher) { d.autoCreate = enabled }
}

// WithClock overrides the wall clock used for last_updated and event times.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *BotDispatcher) { d.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(gen func() string) DispatcherOption {
	return func(d *BotDispatcher) { d.newID = gen }
}

// NewBotDispatcher creates a new BotDispatcher instance.
func NewBotDispatcher(
	store drepo.BotStore,
	signals drepo.SignalLog,
	events drepo.EventPublisher,
	locker drepo.Locker,
	metrics drepo.Metrics,
	machine *prediction.Machine,
	logger *applogger.Logger,
	opts ...DispatcherOption,
) *BotDispatcher {
	d := &BotDispatcher{
		store:   store,
		signals: signals,
		events:  events,
		locker:  locker,
		metrics: metrics,
		machine: machine,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ResolveResult reports what a resolve did. Applied is false when the timestamp did not
// name the pending signal and the mismatch policy ignores it.
type ResolveResult struct {
	Applied bool           `json:"applied"`
	Correct *bool          `json:"correct,omitempty"`
	Bot     models.BotView `json:"bot"`
}

// outcome is what a command produced besides the next state.
type outcome struct {
	events  []*models.BotEvent
	entries []*models.SignalLogEntry
	result  string
}

type mutation func(st *models.BotState, now int64) (*models.BotState, outcome, error)

// InitBot creates a zeroed bot.
func (d *BotDispatcher) InitBot(ctx context.Context, botID string) (models.BotView, error) {
	start := time.Now()
	cmd := string(models.CmdInitBot)

	if err := prediction.ValidateBotID(botID); err != nil {
		d.finish(cmd, resultRejected, start)
		return models.BotView{}, err
	}

	unlock, err := d.locker.Lock(ctx, botID)
	if err != nil {
		d.finish(cmd, resultError, start)
		return models.BotView{}, fmt.Errorf("init %s: %w", botID, err)
	}
	defer unlock()

	st, err := d.create(ctx, botID)
	if err != nil {
		result := resultError
		if prediction.IsRejection(err) {
			result = resultRejected
		}
		d.finish(cmd, result, start)
		return models.BotView{}, err
	}

	d.logger.Info("bot created", applogger.String("bot_id", botID))
	d.finish(cmd, resultOK, start)
	return st.View(), nil
}

// Preload creates every listed bot that does not exist yet.
func (d *BotDispatcher) Preload(ctx context.Context, botIDs []string) error {
	for _, id := range botIDs {
		if _, err := d.InitBot(ctx, id); err != nil && !errors.Is(err, prediction.ErrBotExists) {
			return fmt.Errorf("preload %s: %w", id, err)
		}
	}
	return nil
}

// Submit records a new pending prediction.
func (d *BotDispatcher) Submit(ctx context.Context, botID string, candidate models.Signal) (models.BotView, error) {
	st, err := d.mutate(ctx, models.CmdSubmitPrediction, botID, func(st *models.BotState, now int64) (*models.BotState, outcome, error) {
		next, err := d.machine.Submit(st, candidate)
		if err != nil {
			return nil, outcome{}, err
		}
		sig := next.LatestSignal
		return next, outcome{
			result:  resultOK,
			entries: []*models.SignalLogEntry{{BotID: botID, Event: models.LogSubmitted, Signal: *sig, RecordedAt: now}},
			events:  []*models.BotEvent{d.event(next, models.EventSignalSubmitted, now, func(e *models.BotEvent) { e.Signal = models.NewSignalView(sig) })},
		}, nil
	})
	if err != nil {
		return models.BotView{}, err
	}
	return st.View(), nil
}

// Resolve attaches the observed price to the pending signal stamped ts.
func (d *BotDispatcher) Resolve(ctx context.Context, botID string, ts, actualMicro int64) (ResolveResult, error) {
	var res prediction.Resolution
	st, err := d.mutate(ctx, models.CmdResolveSignal, botID, func(st *models.BotState, now int64) (*models.BotState, outcome, error) {
		next, r, err := d.machine.Resolve(st, ts, actualMicro, now)
		if err != nil {
			return nil, outcome{}, err
		}
		res = r
		if !r.Applied {
			d.logger.Debug("resolve ignored",
				applogger.String("bot_id", botID),
				applogger.Int64("timestamp", ts),
			)
			return next, outcome{result: resultIgnored}, nil
		}

		correct := r.Correct
		view := next.Accuracy.View()
		return next, outcome{
			result: resultOK,
			entries: []*models.SignalLogEntry{{
				BotID: botID, Event: models.LogResolved, Signal: *r.Signal, Correct: &correct, RecordedAt: now,
			}},
			events: []*models.BotEvent{d.event(next, models.EventSignalResolved, now, func(e *models.BotEvent) {
				e.Signal = models.NewSignalView(r.Signal)
				e.Correct = &correct
				e.Accuracy = &view
			})},
		}, nil
	})
	if err != nil {
		return ResolveResult{}, err
	}

	out := ResolveResult{Applied: res.Applied, Bot: st.View()}
	if res.Applied {
		c := res.Correct
		out.Correct = &c
	}
	return out, nil
}

// AddFollower increments the follower count.
func (d *BotDispatcher) AddFollower(ctx context.Context, botID string) (models.BotView, error) {
	st, err := d.mutate(ctx, models.CmdAddFollower, botID, func(st *models.BotState, now int64) (*models.BotState, outcome, error) {
		next := d.machine.AddFollower(st)
		return next, outcome{
			result: resultOK,
			events: []*models.BotEvent{d.event(next, models.EventFollowerAdded, now, nil)},
		}, nil
	})
	if err != nil {
		return models.BotView{}, err
	}
	return st.View(), nil
}

// RemoveFollower decrements the follower count, never below zero.
func (d *BotDispatcher) RemoveFollower(ctx context.Context, botID string) (models.BotView, error) {
	st, err := d.mutate(ctx, models.CmdRemoveFollower, botID, func(st *models.BotState, now int64) (*models.BotState, outcome, error) {
		next, changed := d.machine.RemoveFollower(st)
		if !changed {
			return next, outcome{result: resultIgnored}, nil
		}
		return next, outcome{
			result: resultOK,
			events: []*models.BotEvent{d.event(next, models.EventFollowerRemoved, now, nil)},
		}, nil
	})
	if err != nil {
		return models.BotView{}, err
	}
	return st.View(), nil
}

// Snapshot returns the committed state of a bot. Saves replace the whole record, so
// a single load is always a consistent snapshot.
func (d *BotDispatcher) Snapshot(ctx context.Context, botID string) (models.BotView, error) {
	st, err := d.load(ctx, botID)
	if err != nil {
		return models.BotView{}, err
	}
	return st.View(), nil
}

// History returns logged signals for botID within [from, to], newest first.
func (d *BotDispatcher) History(ctx context.Context, botID string, from, to int64, limit int) ([]*models.SignalView, error) {
	if _, err := d.load(ctx, botID); err != nil {
		return nil, err
	}
	start := time.Now()
	signals, err := d.signals.History(ctx, botID, from, to, limit)
	d.metrics.RecordLatency("history", time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordError("signal_log_read")
		return nil, fmt.Errorf("history %s: %w", botID, err)
	}

	views := make([]*models.SignalView, 0, len(signals))
	for i := range signals {
		views = append(views, models.NewSignalView(&signals[i]))
	}
	return views, nil
}

// List returns all known bot ids.
func (d *BotDispatcher) List(ctx context.Context) ([]string, error) {
	ids, err := d.store.List(ctx)
	if err != nil {
		d.metrics.RecordError("store_list")
		return nil, err
	}
	return ids, nil
}

// Apply dispatches a command envelope, as received from Kafka.
func (d *BotDispatcher) Apply(ctx context.Context, cmd *models.Command, decode func(v interface{}) error) error {
	switch cmd.Type {
	case models.CmdInitBot:
		_, err := d.InitBot(ctx, cmd.BotID)
		return err
	case models.CmdSubmitPrediction:
		var req models.SubmitPredictionRequest
		if err := decode(&req); err != nil {
			return err
		}
		candidate, err := prediction.CandidateFromRequest(&req)
		if err != nil {
			d.finish(string(cmd.Type), resultRejected, time.Now())
			return err
		}
		_, err = d.Submit(ctx, cmd.BotID, candidate)
		return err
	case models.CmdResolveSignal:
		var req models.ResolveSignalRequest
		if err := decode(&req); err != nil {
			return err
		}
		actual, err := prediction.ActualPriceFromRequest(&req)
		if err != nil {
			d.finish(string(cmd.Type), resultRejected, time.Now())
			return err
		}
		_, err = d.Resolve(ctx, cmd.BotID, req.Timestamp, actual)
		return err
	case models.CmdAddFollower:
		_, err := d.AddFollower(ctx, cmd.BotID)
		return err
	case models.CmdRemoveFollower:
		_, err := d.RemoveFollower(ctx, cmd.BotID)
		return err
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

func (d *BotDispatcher) mutate(ctx context.Context, cmdType models.CommandType, botID string, fn mutation) (*models.BotState, error) {
	start := time.Now()
	cmd := string(cmdType)

	unlock, err := d.locker.Lock(ctx, botID)
	if err != nil {
		d.finish(cmd, resultError, start)
		return nil, fmt.Errorf("%s %s: %w", cmd, botID, err)
	}
	defer unlock()

	st, created, err := d.loadForWrite(ctx, botID)
	if err != nil {
		result := resultError
		if prediction.IsRejection(err) {
			result = resultRejected
		}
		d.finish(cmd, result, start)
		return nil, err
	}

	now := d.now().UnixMilli()
	next, out, err := fn(st, now)
	if err != nil {
		if prediction.IsRejection(err) {
			d.logger.Debug("command rejected",
				applogger.String("bot_id", botID),
				applogger.String("command", cmd),
				applogger.Error(err),
			)
			d.finish(cmd, resultRejected, start)
			return nil, err
		}
		d.finish(cmd, resultError, start)
		return nil, err
	}

	if next != st {
		if err := d.store.Save(ctx, next); err != nil {
			d.metrics.RecordError("store_save")
			d.logger.Error("save bot state failed", applogger.String("bot_id", botID), applogger.Error(err))
			d.finish(cmd, resultError, start)
			return nil, err
		}
	}

	for _, e := range out.entries {
		if err := d.signals.Append(ctx, e); err != nil {
			d.metrics.RecordError("signal_log_append")
			d.logger.Error("signal log append failed",
				applogger.String("bot_id", botID),
				applogger.Int64("timestamp", e.Signal.Timestamp),
				applogger.Error(err),
			)
		}
	}

	if created != nil {
		d.publish(ctx, created)
	}
	for _, e := range out.events {
		d.publish(ctx, e)
	}

	d.metrics.RecordAccuracy(botID, next.Accuracy)
	d.metrics.RecordFollowers(botID, next.FollowerCount)
	d.finish(cmd, out.result, start)
	return next, nil
}

// loadForWrite loads the bot, creating it when auto-create is on. The second
// return is the bot.created event to publish, if a bot was created.
func (d *BotDispatcher) loadForWrite(ctx context.Context, botID string) (*models.BotState, *models.BotEvent, error) {
	st, err := d.load(ctx, botID)
	if err == nil || !d.autoCreate || !errors.Is(err, prediction.ErrBotNotFound) {
		return st, nil, err
	}
	if err := prediction.ValidateBotID(botID); err != nil {
		return nil, nil, err
	}

	st, err = d.createState(ctx, botID)
	if errors.Is(err, prediction.ErrBotExists) {
		st, err = d.load(ctx, botID)
		return st, nil, err
	}
	if err != nil {
		return nil, nil, err
	}
	d.logger.Info("bot auto-created", applogger.String("bot_id", botID))
	return st, d.event(st, models.EventBotCreated, st.CreatedAt, nil), nil
}

func (d *BotDispatcher) load(ctx context.Context, botID string) (*models.BotState, error) {
	st, err := d.store.Load(ctx, botID)
	if errors.Is(err, drepo.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", botID, prediction.ErrBotNotFound)
	}
	if err != nil {
		d.metrics.RecordError("store_load")
		return nil, err
	}
	return st, nil
}

func (d *BotDispatcher) create(ctx context.Context, botID string) (*models.BotState, error) {
	st, err := d.createState(ctx, botID)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, d.event(st, models.EventBotCreated, st.CreatedAt, nil))
	d.metrics.RecordAccuracy(botID, st.Accuracy)
	d.metrics.RecordFollowers(botID, st.FollowerCount)
	return st, nil
}

func (d *BotDispatcher) createState(ctx context.Context, botID string) (*models.BotState, error) {
	st := models.NewBotState(botID, d.now().UnixMilli())
	if err := d.store.Create(ctx, st); err != nil {
		if errors.Is(err, drepo.ErrExists) {
			return nil, fmt.Errorf("%s: %w", botID, prediction.ErrBotExists)
		}
		d.metrics.RecordError("store_create")
		return nil, err
	}
	return st, nil
}

func (d *BotDispatcher) event(st *models.BotState, typ models.EventType, now int64, fill func(*models.BotEvent)) *models.BotEvent {
	e := &models.BotEvent{
		ID:            d.newID(),
		BotID:         st.BotID,
		Type:          typ,
		FollowerCount: st.FollowerCount,
		Version:       st.Version,
		OccurredAt:    now,
	}
	if fill != nil {
		fill(e)
	}
	return e
}

// publish is best effort: state is already committed.
func (d *BotDispatcher) publish(ctx context.Context, e *models.BotEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, e); err != nil {
		d.metrics.RecordError("event_publish")
		d.logger.Warn("event publish failed",
			applogger.String("bot_id", e.BotID),
			applogger.String("type", string(e.Type)),
			applogger.Error(err),
		)
	}
}

func (d *BotDispatcher) finish(cmd, result string, start time.Time) {
	d.metrics.RecordCommand(cmd, result)
	d.metrics.RecordLatency(cmd, time.Since(start).Seconds())
}
