package skills

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/flowctl/flowctl/internal/jsonl"
	"github.com/flowctl/flowctl/internal/redact"
)

const (
	// DefaultTopK bounds the number of matches returned.
	DefaultTopK = 3
	// DefaultThreshold is the minimum blended score to be returned.
	DefaultThreshold = 0.75
	// MaxPayloadTokens caps prepare_payload's body length.
	MaxPayloadTokens = 5000
	queryTruncateLen = 160
	embeddingWeight  = 0.70
	bm25Weight       = 0.30
)

// EmbeddingCache supplies a pre-computed embedding for a skill, keyed by its
// directory path and a hash of its frontmatter. Absent entries fall back to
// BM25-only scoring.
type EmbeddingCache interface {
	Lookup(path, frontmatterHash string) ([]float64, bool)
}

// Matcher ranks Skills against a free-text query.
type Matcher struct {
	skills   []Skill
	bm25     *bm25Index
	cache    EmbeddingCache
	queryVec func(string) []float64
	events   *jsonl.Writer
}

// NewMatcher builds a BM25 index over skills' descriptions. cache and
// queryVec are optional; when either is nil, matching is BM25-only.
func NewMatcher(skillList []Skill, cache EmbeddingCache, queryVec func(string) []float64, events *jsonl.Writer) *Matcher {
	docs := make([]string, len(skillList))
	for i, s := range skillList {
		docs[i] = s.Description
	}
	return &Matcher{
		skills:   skillList,
		bm25:     newBM25Index(docs),
		cache:    cache,
		queryVec: queryVec,
		events:   events,
	}
}

// Match is one ranked result.
type Match struct {
	Skill Skill
	Score float64
}

// Match returns up to topK skills scoring >= threshold against query,
// descending by score. topK<=0 and threshold<0 use the spec defaults.
func (m *Matcher) Match(query string, topK int, threshold float64) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	bm25Scores := m.bm25.scores(query)
	var queryVec []float64
	if m.queryVec != nil {
		queryVec = m.queryVec(query)
	}

	results := make([]Match, 0, len(m.skills))
	for i, s := range m.skills {
		score := bm25Scores[i]
		if queryVec != nil && m.cache != nil {
			if vec, ok := m.cache.Lookup(s.Dir, frontmatterHash(s)); ok {
				cos := cosineSimilarity(queryVec, vec)
				score = embeddingWeight*cos + bm25Weight*bm25Scores[i]
			}
		}
		if score >= threshold {
			results = append(results, Match{Skill: s, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}

	m.emitSelected(query, results)
	return results
}

// PreparePayload returns each matched skill's body, truncated to
// MaxPayloadTokens whitespace-separated tokens, and emits skill_loaded.
func (m *Matcher) PreparePayload(query string, matches []Match) map[string]string {
	payload := make(map[string]string, len(matches))
	for _, match := range matches {
		tokens := strings.Fields(match.Skill.Body)
		truncated := len(tokens) > MaxPayloadTokens
		if truncated {
			tokens = tokens[:MaxPayloadTokens]
		}
		body := strings.Join(tokens, " ")
		payload[match.Skill.Entry.Name] = body

		m.emit(map[string]interface{}{
			"ts":        time.Now().UTC(),
			"kind":      "skill_loaded",
			"skill":     match.Skill.Entry.Name,
			"truncated": truncated,
		})
	}
	return payload
}

func (m *Matcher) emitSelected(query string, results []Match) {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Skill.Entry.Name
	}
	m.emit(map[string]interface{}{
		"ts":      time.Now().UTC(),
		"kind":    "skill_selected",
		"query":   truncate(query, queryTruncateLen),
		"matches": names,
	})
}

func (m *Matcher) emit(rec map[string]interface{}) {
	if m.events == nil {
		return
	}
	_ = m.events.WriteJSON(redact.Value(rec))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func frontmatterHash(s Skill) string {
	sum := sha256.Sum256([]byte(s.Entry.Name + "\x00" + s.Description))
	return hex.EncodeToString(sum[:])
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
