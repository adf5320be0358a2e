package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/repository"
	"AlphaBot/internal/service/lock"
	"AlphaBot/internal/services/prediction"
	"AlphaBot/pkg/cache"
	applogger "AlphaBot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.BotEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *models.BotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	commands map[string]int
	errors   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{commands: map[string]int{}, errors: map[string]int{}}
}

func (m *recordingMetrics) RecordCommand(cmd, result string) {
	m.mu.Lock()
	m.commands[cmd+"/"+result]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(string, float64)                 {}
func (m *recordingMetrics) RecordAccuracy(string, models.AccuracyMetrics) {}
func (m *recordingMetrics) RecordFollowers(string, uint64)                {}

type failingLog struct{ *repository.MemorySignalLog }

func (failingLog) Append(context.Context, *models.SignalLogEntry) error {
	return errors.New("clickhouse down")
}

type fixture struct {
	d       *BotDispatcher
	events  *recordingPublisher
	metrics *recordingMetrics
	log     *repository.MemorySignalLog
}

func newFixture(t *testing.T, policy prediction.ResolutionPolicy, opts ...DispatcherOption) *fixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	f := &fixture{
		events:  &recordingPublisher{},
		metrics: newRecordingMetrics(),
		log:     repository.NewMemorySignalLog(),
	}
	clock := int64(1_700_000_000_000)
	opts = append([]DispatcherOption{
		WithClock(func() time.Time { clock++; return time.UnixMilli(clock) }),
	}, opts...)
	f.d = NewBotDispatcher(
		repository.NewCacheBotStore(mc),
		f.log,
		f.events,
		lock.NewKeyedMutex(),
		f.metrics,
		prediction.NewMachine(prediction.NewAggregator(), policy),
		applogger.Nop(),
		opts...,
	)
	return f
}

func submitReq(ts int64, action models.Action, predicted float64) models.Signal {
	return models.Signal{
		Timestamp:           ts,
		Action:              action,
		PredictedPriceMicro: models.MicroFromFloat(predicted),
		ConfidenceBps:       8000,
		Reasoning:           "momentum",
	}
}

func TestDispatcher_InitBot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())

	view, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", view.BotID)
	assert.Nil(t, view.LatestSignal)
	assert.Zero(t, view.Accuracy24h.TotalPredictions)

	_, err = f.d.InitBot(ctx, "alpha")
	assert.ErrorIs(t, err, prediction.ErrBotExists)

	_, err = f.d.InitBot(ctx, "bad id!")
	var ve *prediction.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bot_id", ve.Field)

	assert.Equal(t, []models.EventType{models.EventBotCreated}, f.events.types())
	assert.Equal(t, 1, f.metrics.commands["init_bot/ok"])
	assert.Equal(t, 2, f.metrics.commands["init_bot/rejected"])

	ids, err := f.d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestDispatcher_UnknownBot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())

	_, err := f.d.Submit(ctx, "ghost", submitReq(1, models.ActionBuy, 2600))
	assert.ErrorIs(t, err, prediction.ErrBotNotFound)
	_, err = f.d.Snapshot(ctx, "ghost")
	assert.ErrorIs(t, err, prediction.ErrBotNotFound)
	_, err = f.d.History(ctx, "ghost", 0, 0, 10)
	assert.ErrorIs(t, err, prediction.ErrBotNotFound)
}

func TestDispatcher_AutoCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy(), WithAutoCreate(true))

	view, err := f.d.Submit(ctx, "beta", submitReq(1, models.ActionBuy, 2600))
	require.NoError(t, err)
	require.NotNil(t, view.LatestSignal)
	assert.Equal(t, models.StatusPending, view.LatestSignal.Status)
	assert.Equal(t, []models.EventType{models.EventBotCreated, models.EventSignalSubmitted}, f.events.types())
}

func TestDispatcher_SubmitResolveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())
	_, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)

	_, err = f.d.Submit(ctx, "alpha", submitReq(1000, models.ActionBuy, 2600))
	require.NoError(t, err)

	res, err := f.d.Resolve(ctx, "alpha", 1000, models.MicroFromFloat(2550))
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NotNil(t, res.Correct)
	assert.False(t, *res.Correct, "reference is the signal's own predicted price")
	assert.Equal(t, uint64(1), res.Bot.Accuracy24h.TotalPredictions)
	assert.InDelta(t, 50.0, res.Bot.Accuracy24h.RMSE, 1e-9)

	_, err = f.d.Resolve(ctx, "alpha", 1000, models.MicroFromFloat(2550))
	assert.ErrorIs(t, err, prediction.ErrAlreadyResolved)

	_, err = f.d.Submit(ctx, "alpha", submitReq(1000, models.ActionSell, 2400))
	var oe *prediction.OrderingError
	assert.ErrorAs(t, err, &oe)

	view, err := f.d.Snapshot(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.Accuracy24h.TotalPredictions)

	history, err := f.d.History(ctx, "alpha", 0, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusResolved, history[0].Status)

	assert.Equal(t, []models.EventType{
		models.EventBotCreated, models.EventSignalSubmitted, models.EventSignalResolved,
	}, f.events.types())
	assert.Equal(t, 1, f.metrics.commands["resolve_signal/rejected"])
	assert.Equal(t, 1, f.metrics.commands["submit_prediction/rejected"])
}

func TestDispatcher_ResolveMismatch(t *testing.T) {
	ctx := context.Background()

	t.Run("ignored by default", func(t *testing.T) {
		f := newFixture(t, prediction.DefaultResolutionPolicy())
		_, err := f.d.InitBot(ctx, "alpha")
		require.NoError(t, err)
		_, err = f.d.Submit(ctx, "alpha", submitReq(1000, models.ActionBuy, 2600))
		require.NoError(t, err)

		res, err := f.d.Resolve(ctx, "alpha", 999, models.MicroFromFloat(2550))
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Nil(t, res.Correct)
		assert.Equal(t, models.StatusPending, res.Bot.LatestSignal.Status)
		assert.Equal(t, 1, f.metrics.commands["resolve_signal/ignored"])
	})

	t.Run("rejected when configured", func(t *testing.T) {
		policy := prediction.DefaultResolutionPolicy()
		policy.OnMismatch = prediction.MismatchReject
		f := newFixture(t, policy)
		_, err := f.d.InitBot(ctx, "alpha")
		require.NoError(t, err)

		_, err = f.d.Resolve(ctx, "alpha", 999, models.MicroFromFloat(2550))
		assert.ErrorIs(t, err, prediction.ErrResolutionMismatch)
	})
}

func TestDispatcher_Followers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())
	_, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)

	view, err := f.d.RemoveFollower(ctx, "alpha")
	require.NoError(t, err)
	assert.Zero(t, view.FollowerCount)

	view, err = f.d.AddFollower(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.FollowerCount)

	view, err = f.d.RemoveFollower(ctx, "alpha")
	require.NoError(t, err)
	assert.Zero(t, view.FollowerCount)

	assert.Equal(t, []models.EventType{
		models.EventBotCreated, models.EventFollowerAdded, models.EventFollowerRemoved,
	}, f.events.types())
}

func TestDispatcher_SideEffectFailuresAreNotSurfaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())
	f.d.signals = failingLog{repository.NewMemorySignalLog()}
	f.events.err = errors.New("broker down")

	_, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)
	view, err := f.d.Submit(ctx, "alpha", submitReq(1, models.ActionHold, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.LatestSignal.Timestamp)

	assert.Equal(t, 1, f.metrics.errors["signal_log_append"])
	assert.Equal(t, 2, f.metrics.errors["event_publish"])
}

func TestDispatcher_ConcurrentCommandsSerialise(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())
	_, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.d.AddFollower(ctx, "alpha")
		}()
	}
	wg.Wait()

	view, err := f.d.Snapshot(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), view.FollowerCount)
}

func TestDispatcher_Preload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prediction.DefaultResolutionPolicy())
	_, err := f.d.InitBot(ctx, "alpha")
	require.NoError(t, err)

	require.NoError(t, f.d.Preload(ctx, []string{"alpha", "beta"}))
	ids, err := f.d.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ids)

	assert.Error(t, f.d.Preload(ctx, []string{"not valid"}))
}
