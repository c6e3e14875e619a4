// Package universe aggregates per-exchange assets into a tiered, cached
// trading universe and resolves the slice of it a given user may scan.
package universe

import (
	"sort"

	"github.com/quantpulse/opportune/internal/domain"
)

// Classify collapses per-exchange asset maps to one best-quote asset per
// symbol, then buckets by volume tier. Selection is deterministic: highest
// 24h USD volume wins, ties break on ascending exchange priority then
// exchange id. Buckets are sorted by volume descending.
func Classify(perExchange []map[string]domain.Asset, priorities map[string]int) map[domain.Tier][]domain.Asset {
	best := make(map[string]domain.Asset)
	for _, assets := range perExchange {
		for sym, a := range assets {
			prev, seen := best[sym]
			if !seen || better(a, prev, priorities) {
				best[sym] = a
			}
		}
	}

	buckets := make(map[domain.Tier][]domain.Asset, len(domain.Tiers()))
	for _, t := range domain.Tiers() {
		buckets[t] = []domain.Asset{}
	}
	for _, a := range best {
		a.Tier = domain.TierForVolume(a.Volume24hUSD)
		buckets[a.Tier] = append(buckets[a.Tier], a)
	}

	for t := range buckets {
		b := buckets[t]
		sort.SliceStable(b, func(i, j int) bool {
			return b[i].Volume24hUSD > b[j].Volume24hUSD
		})
	}
	return buckets
}

func better(a, b domain.Asset, priorities map[string]int) bool {
	if a.Volume24hUSD != b.Volume24hUSD {
		return a.Volume24hUSD > b.Volume24hUSD
	}
	pa, pb := priorities[a.Exchange], priorities[b.Exchange]
	if pa != pb {
		return pa < pb
	}
	return a.Exchange < b.Exchange
}

// FilterMinTier keeps only tiers at or above the given minimum (priority
// less than or equal to the minimum's priority).
func FilterMinTier(buckets map[domain.Tier][]domain.Asset, min domain.Tier) map[domain.Tier][]domain.Asset {
	out := make(map[domain.Tier][]domain.Asset)
	for t, assets := range buckets {
		if t.Priority() <= min.Priority() {
			out[t] = assets
		}
	}
	return out
}
