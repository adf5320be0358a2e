package prediction

import (
	"fmt"

	"AlphaBot/internal/domain/models"
)

// Machine applies commands to one bot's state: Empty -> Pending -> Resolved -> Pending ...
// It never mutates the state it is given; accepted transitions return a new state with
// Version advanced.
type Machine struct {
	agg    *Aggregator
	policy ResolutionPolicy
}

func NewMachine(agg *Aggregator, policy ResolutionPolicy) *Machine {
	if agg == nil {
		agg = NewAggregator()
	}
	if policy.Reference == "" {
		policy.Reference = RefSignalPredicted
	}
	if policy.OnMismatch == "" {
		policy.OnMismatch = MismatchIgnore
	}
	return &Machine{agg: agg, policy: policy}
}

func (m *Machine) Policy() ResolutionPolicy { return m.policy }

// Submit stores candidate as the pending signal, replacing whatever was in the slot.
func (m *Machine) Submit(st *models.BotState, candidate models.Signal) (*models.BotState, error) {
	candidate.ActualPriceMicro = nil
	if err := Validate(&candidate); err != nil {
		return nil, err
	}
	if prev := st.LatestSignal; prev != nil && candidate.Timestamp <= prev.Timestamp {
		return nil, &OrderingError{Timestamp: candidate.Timestamp, Previous: prev.Timestamp}
	}

	next := st.Clone()
	next.LatestSignal = &candidate
	next.Version++
	return next, nil
}

// Resolution describes the outcome of a resolve.
type Resolution struct {
	Applied   bool
	Correct   bool
	Reference int64
	Signal    *models.Signal
}

// Resolve attaches actualMicro to the pending signal stamped ts and folds it into the
// metrics. A timestamp that does not name the slot's signal follows the mismatch policy;
// with MismatchIgnore the input state is returned unchanged and Applied is false.
func (m *Machine) Resolve(st *models.BotState, ts, actualMicro, now int64) (*models.BotState, Resolution, error) {
	if err := ValidateActualPrice(actualMicro); err != nil {
		return nil, Resolution{}, err
	}

	cur := st.LatestSignal
	if cur == nil || cur.Timestamp != ts {
		if m.policy.OnMismatch == MismatchReject {
			return nil, Resolution{}, fmt.Errorf("resolve %d: %w", ts, ErrResolutionMismatch)
		}
		return st, Resolution{}, nil
	}
	if cur.IsResolved() {
		return nil, Resolution{}, fmt.Errorf("resolve %d: %w", ts, ErrAlreadyResolved)
	}

	resolved := cur.Resolved(actualMicro)
	ref := m.policy.Reference.ReferencePrice(st.LastResolved, &resolved)
	correct, _ := m.agg.IsDirectionallyCorrect(&resolved, ref)

	next := st.Clone()
	next.Accuracy = m.agg.Update(next.Accuracy, &resolved, ref, now)
	next.LatestSignal = &resolved
	next.LastResolved = resolved.Clone()
	next.Version++

	return next, Resolution{Applied: true, Correct: correct, Reference: ref, Signal: resolved.Clone()}, nil
}

// AddFollower increments the follower counter.
func (m *Machine) AddFollower(st *models.BotState) *models.BotState {
	next := st.Clone()
	next.FollowerCount++
	next.Version++
	return next
}

// RemoveFollower decrements the follower counter, never below zero. changed is false
// when the counter was already zero.
func (m *Machine) RemoveFollower(st *models.BotState) (next *models.BotState, changed bool) {
	if st.FollowerCount == 0 {
		return st, false
	}
	next = st.Clone()
	next.FollowerCount--
	next.Version++
	return next, true
}
