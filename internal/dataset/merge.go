package dataset

import "coinpulse/internal/domain"

// MergeStats describes how an incoming batch changed the dataset.
type MergeStats struct {
	Incoming int
	Added    int
	Replaced int
	Total    int
}

// Merge concatenates old and incoming and keeps one row per (coin, timestamp)
// key. The last occurrence wins and takes the position of the first. Rows
// with invalid timestamps share one key per coin.
func Merge(old, incoming []domain.Observation) ([]domain.Observation, MergeStats) {
	stats := MergeStats{Incoming: len(incoming)}
	out := make([]domain.Observation, 0, len(old)+len(incoming))
	index := make(map[domain.Key]int, len(old)+len(incoming))

	put := func(row domain.Observation) bool {
		k := row.Key()
		if i, ok := index[k]; ok {
			out[i] = row
			return true
		}
		index[k] = len(out)
		out = append(out, row)
		return false
	}

	for _, row := range old {
		put(row)
	}
	for _, row := range incoming {
		if put(row) {
			stats.Replaced++
		} else {
			stats.Added++
		}
	}
	stats.Total = len(out)
	return out, stats
}
