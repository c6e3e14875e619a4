package domain

// Tier buckets assets by 24h USD volume. Higher tiers carry lower priority
// numbers: institutional=1 down to any=7.
type Tier string

const (
	TierInstitutional Tier = "institutional"
	TierEnterprise    Tier = "enterprise"
	TierProfessional  Tier = "professional"
	TierRetail        Tier = "retail"
	TierEmerging      Tier = "emerging"
	TierMicro         Tier = "micro"
	TierAny           Tier = "any"
)

type tierDef struct {
	tier      Tier
	threshold float64 // inclusive lower bound, 24h USD volume
	priority  int
}

// tierTable is ordered highest tier first. Thresholds are strictly
// decreasing so assignment to the first matching tier is well defined.
var tierTable = []tierDef{
	{TierInstitutional, 100_000_000, 1},
	{TierEnterprise, 50_000_000, 2},
	{TierProfessional, 10_000_000, 3},
	{TierRetail, 1_000_000, 4},
	{TierEmerging, 100_000, 5},
	{TierMicro, 10_000, 6},
	{TierAny, 0, 7},
}

// Tiers returns all tiers in priority order (institutional first).
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierTable))
	for _, d := range tierTable {
		out = append(out, d.tier)
	}
	return out
}

// Priority returns the tier's rank, 1 (institutional) through 7 (any).
// Unknown tiers rank below everything.
func (t Tier) Priority() int {
	for _, d := range tierTable {
		if d.tier == t {
			return d.priority
		}
	}
	return len(tierTable) + 1
}

// Threshold returns the inclusive 24h USD volume lower bound for the tier.
func (t Tier) Threshold() float64 {
	for _, d := range tierTable {
		if d.tier == t {
			return d.threshold
		}
	}
	return 0
}

// Valid reports whether t names a known tier.
func (t Tier) Valid() bool {
	for _, d := range tierTable {
		if d.tier == t {
			return true
		}
	}
	return false
}

// TierForVolume assigns the highest tier whose threshold the volume meets.
func TierForVolume(volume24hUSD float64) Tier {
	for _, d := range tierTable {
		if volume24hUSD >= d.threshold {
			return d.tier
		}
	}
	return TierAny
}

// ParseTier maps a tier name to its Tier, defaulting to TierAny.
func ParseTier(s string) Tier {
	t := Tier(s)
	if t.Valid() {
		return t
	}
	return TierAny
}
