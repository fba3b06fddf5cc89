package similarity

import (
	"math"

	"github.com/nidhogg/findit/internal/text"
)

// Corpus is a throwaway TF-IDF index over a handful of tokenized documents.
type Corpus struct {
	counts []map[string]float64
	df     map[string]int
	n      int
}

// NewCorpus indexes the given token lists, one per document.
func NewCorpus(docs ...[]string) *Corpus {
	c := &Corpus{
		counts: make([]map[string]float64, len(docs)),
		df:     make(map[string]int),
		n:      len(docs),
	}
	for i, tokens := range docs {
		tf := make(map[string]float64, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			c.df[t]++
		}
		c.counts[i] = tf
	}
	return c
}

// Weight returns tf * idf of term in document doc, with raw counts for tf and
// idf = 1 + ln(N / (1 + df)).
func (c *Corpus) Weight(term string, doc int) float64 {
	if doc < 0 || doc >= c.n {
		return 0
	}
	tf := c.counts[doc][term]
	if tf == 0 {
		return 0
	}
	idf := 1 + math.Log(float64(c.n)/float64(1+c.df[term]))
	return tf * idf
}

// Cosine returns the cosine similarity of two documents' weight vectors over
// the union of their terms.
func (c *Corpus) Cosine(i, j int) float64 {
	if i < 0 || j < 0 || i >= c.n || j >= c.n {
		return 0
	}
	var dot, magI, magJ float64
	seen := make(map[string]bool, len(c.counts[i])+len(c.counts[j]))
	for _, doc := range []map[string]float64{c.counts[i], c.counts[j]} {
		for term := range doc {
			if seen[term] {
				continue
			}
			seen[term] = true
			wi, wj := c.Weight(term, i), c.Weight(term, j)
			dot += wi * wj
			magI += wi * wi
			magJ += wj * wj
		}
	}
	if magI == 0 || magJ == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(magI) * math.Sqrt(magJ)))
}

// TFIDF scores two free-text strings on a fresh two-document corpus.
func TFIDF(a, b string) float64 {
	return TFIDFTokens(text.Normalize(a), text.Normalize(b))
}

// TFIDFTokens is TFIDF over already-normalized token lists.
func TFIDFTokens(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return NewCorpus(a, b).Cosine(0, 1)
}
