package models

// BotState is everything persisted for one bot.
type BotState struct {
	BotID         string          `json:"bot_id"`
	LatestSignal  *Signal         `json:"latest_signal,omitempty"`
	LastResolved  *Signal         `json:"last_resolved,omitempty"`
	Accuracy      AccuracyMetrics `json:"accuracy_24h"`
	FollowerCount uint64          `json:"follower_count"`
	Version       uint64          `json:"version"`
	CreatedAt     int64           `json:"created_at"`
}

// NewBotState returns a zeroed state for botID.
func NewBotState(botID string, createdAt int64) *BotState {
	return &BotState{BotID: botID, CreatedAt: createdAt}
}

// Clone returns a deep copy so callers can mutate without touching a shared snapshot.
func (b *BotState) Clone() *BotState {
	if b == nil {
		return nil
	}
	c := *b
	c.LatestSignal = b.LatestSignal.Clone()
	c.LastResolved = b.LastResolved.Clone()
	return &c
}

// SignalView is a signal as shown to readers.
type SignalView struct {
	Timestamp           int64        `json:"timestamp"`
	Action              Action       `json:"action"`
	PredictedPriceMicro int64        `json:"predicted_price_micro"`
	PredictedPrice      string       `json:"predicted_price"`
	ConfidenceBps       int64        `json:"confidence_bps"`
	Confidence          float64      `json:"confidence"`
	Reasoning           string       `json:"reasoning"`
	ActualPriceMicro    *int64       `json:"actual_price_micro"`
	ActualPrice         *string      `json:"actual_price"`
	Status              SignalStatus `json:"status"`
}

// NewSignalView projects s for readers.
func NewSignalView(s *Signal) *SignalView {
	if s == nil {
		return nil
	}
	v := &SignalView{
		Timestamp:           s.Timestamp,
		Action:              s.Action,
		PredictedPriceMicro: s.PredictedPriceMicro,
		PredictedPrice:      DecimalFromMicro(s.PredictedPriceMicro).String(),
		ConfidenceBps:       s.ConfidenceBps,
		Confidence:          ProbabilityFromBps(s.ConfidenceBps),
		Reasoning:           s.Reasoning,
		Status:              s.Status(),
	}
	if s.ActualPriceMicro != nil {
		micro := *s.ActualPriceMicro
		price := DecimalFromMicro(micro).String()
		v.ActualPriceMicro = &micro
		v.ActualPrice = &price
	}
	return v
}

// BotView is the full query projection of a bot.
type BotView struct {
	BotID         string       `json:"bot_id"`
	LatestSignal  *SignalView  `json:"latest_signal"`
	Accuracy24h   AccuracyView `json:"accuracy_24h"`
	FollowerCount uint64       `json:"follower_count"`
	// Version matches BotEvent.Version of the last change reflected here.
	Version uint64 `json:"version"`
}

// View projects the state for readers. The running sum of squared errors is not exposed.
func (b *BotState) View() BotView {
	return BotView{
		BotID:         b.BotID,
		LatestSignal:  NewSignalView(b.LatestSignal),
		Accuracy24h:   b.Accuracy.View(),
		FollowerCount: b.FollowerCount,
		Version:       b.Version,
	}
}
