package match

import (
	"sort"
	"time"

	"github.com/nidhogg/findit/internal/item"
)

// Breakdown records the sub-scores that built a composite score. Signals
// holds every signal with a positive weight, each in [0,1]. Attributes holds
// the unweighted similarity of each category attribute present on both items.
type Breakdown struct {
	Signals    map[Signal]float64 `json:"signals"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// Result is one scored (lost, found) pairing.
type Result struct {
	LostID      string    `json:"lost_id"`
	FoundID     string    `json:"found_id"`
	CandidateID string    `json:"candidate_id"`
	PairKey     string    `json:"pair_key"`
	Score       float64   `json:"score"`
	Breakdown   Breakdown `json:"breakdown"`
	Preset      string    `json:"preset"`

	Category item.Category `json:"category"`
	Contact  string        `json:"contact"`
	Location string        `json:"location"`
	Date     time.Time     `json:"date"`
}

// PairKeySeparator joins the two ids of a pair key. Ids containing it can
// produce the same key for different pairs.
const PairKeySeparator = "_"

// PairKey is the canonical unordered key of two item ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + PairKeySeparator + b
}

// Dedupe keeps one result per pair key, the higher-scored one. Ties keep
// the first seen. Output order is unspecified; follow with SortResults.
func Dedupe(results []Result) []Result {
	if len(results) < 2 {
		return results
	}
	index := make(map[string]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if i, ok := index[r.PairKey]; ok {
			if r.Score > out[i].Score {
				out[i] = r
			}
			continue
		}
		index[r.PairKey] = len(out)
		out = append(out, r)
	}
	return out
}

// SortResults orders by score descending, then candidate id and pair key
// ascending.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CandidateID != b.CandidateID {
			return a.CandidateID < b.CandidateID
		}
		return a.PairKey < b.PairKey
	})
}

// AboveThreshold keeps results scoring at least threshold.
func AboveThreshold(results []Result, threshold float64) []Result {
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// finalize applies the output contract: threshold, dedupe, sort.
func finalize(results []Result, threshold float64) []Result {
	out := Dedupe(AboveThreshold(results, threshold))
	SortResults(out)
	return out
}
