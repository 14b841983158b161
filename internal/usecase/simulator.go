package usecase

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/user/serp-tracker/pkg/utils"
)

const simulatedMissRate = 0.3

// SimulationScore rates how well website's domain matches query: 0.7 weighted by the share of
// query words found in the domain, 0.1 for https and 0.2 for a .fr or .com domain.
func SimulationScore(website, query string) float64 {
	domain := utils.ExtractDomain(website)
	if domain == "" {
		return 0
	}

	var score float64
	words := strings.Fields(strings.ToLower(query))
	if len(words) > 0 {
		matched := 0
		for _, w := range words {
			if strings.Contains(domain, w) {
				matched++
			}
		}
		score += 0.7 * float64(matched) / float64(len(words))
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(website)), "https://") {
		score += 0.1
	}
	switch domain[strings.LastIndexByte(domain, '.')+1:] {
	case "fr", "com":
		score += 0.2
	}
	return score
}

// SimulatePosition estimates a rank from SimulationScore. The draw is seeded by website and
// query so the same pair always gets the same estimate.
func SimulatePosition(website, query string) (int, bool) {
	score := SimulationScore(website, query)

	h := fnv.New64a()
	h.Write([]byte(utils.ExtractDomain(website)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed>>1|1))

	switch {
	case score > 0.6:
		return 1 + r.IntN(20), true
	case score > 0.3:
		return 21 + r.IntN(30), true
	case r.Float64() < simulatedMissRate:
		return 0, false
	default:
		return 51 + r.IntN(50), true
	}
}
