package storage

import "sort"

// nextID advances counter past every key already present in existing.
func nextID[T any](counter *int64, existing map[int64]T) int64 {
	for {
		*counter++
		if _, taken := existing[*counter]; !taken {
			return *counter
		}
	}
}

// normalizeIDs drops non-positive ids and returns the rest sorted and unique.
func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
