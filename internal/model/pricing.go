package model

// tokenCosts is the single authoritative price table. Both the charge step and
// the pricing endpoint consult it; nothing else may restate these numbers.
var tokenCosts = map[MediaType]int64{
	MediaImage: 10,
	MediaVideo: 100,
}

// TokenCost returns the price for a media type and whether the type is known.
func TokenCost(mt MediaType) (int64, bool) {
	cost, ok := tokenCosts[mt]
	return cost, ok
}

// Pricing returns a copy of the full price table.
func Pricing() map[MediaType]int64 {
	out := make(map[MediaType]int64, len(tokenCosts))
	for k, v := range tokenCosts {
		out[k] = v
	}
	return out
}
