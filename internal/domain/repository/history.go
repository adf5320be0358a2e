package repository

import (
	"sort"

	"AlphaBot/internal/domain/models"
)

// MergeHistory folds log rows (any order) into one signal per timestamp, applying the
// first resolved row's actual price, filtered to [from, to] and sorted newest first.
func MergeHistory(entries []models.SignalLogEntry, from, to int64, limit int) []models.Signal {
	byTS := make(map[int64]*models.Signal, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Signal.Timestamp < from || (to > 0 && e.Signal.Timestamp > to) {
			continue
		}
		s, ok := byTS[e.Signal.Timestamp]
		if !ok {
			c := e.Signal
			c.ActualPriceMicro = nil
			s = &c
			byTS[e.Signal.Timestamp] = s
		}
		if e.Event == models.LogResolved && s.ActualPriceMicro == nil && e.Signal.ActualPriceMicro != nil {
			v := *e.Signal.ActualPriceMicro
			s.ActualPriceMicro = &v
		}
	}

	out := make([]models.Signal, 0, len(byTS))
	for _, s := range byTS {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
