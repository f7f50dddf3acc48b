package skills

import (
	"math"
	"strings"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Index is a minimal Okapi BM25 index over a fixed document set,
// computed eagerly since the skill catalog is small and rebuilt once per
// process run.
type bm25Index struct {
	docs      [][]string
	docFreq   map[string]int
	avgDocLen float64
}

func newBM25Index(documents []string) *bm25Index {
	idx := &bm25Index{docFreq: make(map[string]int)}
	total := 0
	for _, d := range documents {
		terms := tokenize(d)
		idx.docs = append(idx.docs, terms)
		total += len(terms)
		for term := range uniqueTerms(terms) {
			idx.docFreq[term]++
		}
	}
	if len(documents) > 0 {
		idx.avgDocLen = float64(total) / float64(len(documents))
	}
	return idx
}

// scores returns the BM25 score of query against every indexed document, in
// document order.
func (idx *bm25Index) scores(query string) []float64 {
	qTerms := tokenize(query)
	n := float64(len(idx.docs))

	out := make([]float64, len(idx.docs))
	for i, doc := range idx.docs {
		termFreq := make(map[string]int, len(doc))
		for _, t := range doc {
			termFreq[t]++
		}
		docLen := float64(len(doc))

		var score float64
		for _, qt := range qTerms {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[qt])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			denom := tf + bm25K1*(1-bm25B+bm25B*docLen/maxFloat(idx.avgDocLen, 1))
			score += idf * (tf * (bm25K1 + 1) / denom)
		}
		out[i] = normalizeScore(score)
	}
	return out
}

// normalizeScore maps a raw BM25 score into roughly [0,1] via a saturating
// curve, so it sits on the same scale as cosine similarity for blending.
func normalizeScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 1)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func uniqueTerms(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
