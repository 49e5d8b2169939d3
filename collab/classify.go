package collab

import (
	"fmt"
	"regexp"
	"strings"
)

// enumerationPattern matches numbered or bulleted list markers used to
// detect multi-part questions.
var enumerationPattern = regexp.MustCompile(`[1-9][.)]|•|-\s`)

// ClassifierConfig holds the complexity scoring thresholds. The zero
// value is not usable; start from DefaultClassifierConfig.
type ClassifierConfig struct {
	// MinQueryLength is the query length that scores as long (+2).
	MinQueryLength int

	// MinEnumerationMarkers is how many list markers make a query
	// multi-part (+3).
	MinEnumerationMarkers int

	// AnalysisKeywords score +2 when any appears in query or context.
	AnalysisKeywords []string

	// DepthKeywords score +1 when any appears in query or context.
	DepthKeywords []string

	// MinContextLength is the context length that scores as
	// context-bearing (+1).
	MinContextLength int

	// ComplexThreshold is the score at which a query is complex.
	ComplexThreshold int
}

// DefaultClassifierConfig returns the stock thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinQueryLength:        100,
		MinEnumerationMarkers: 2,
		AnalysisKeywords: []string{
			"analyze", "compare", "evaluate", "strategy", "recommend",
			"pros and cons", "trade-offs", "considerations", "decision",
			"architecture", "design",
		},
		DepthKeywords: []string{
			"how", "why", "explain", "detailed", "comprehensive", "in-depth",
		},
		MinContextLength: 50,
		ComplexThreshold: 4,
	}
}

// Complexity is the classifier verdict for one query.
type Complexity struct {
	Score     int      `json:"score"`
	IsComplex bool     `json:"is_complex"`
	Reasons   []string `json:"reasons"`
}

// Classify scores a query deterministically. Equal inputs always yield
// equal verdicts; no randomness and no LLM involved.
func (c ClassifierConfig) Classify(query, context string) Complexity {
	score := 0
	var reasons []string
	fullText := strings.ToLower(query + context)

	if len(query) >= c.MinQueryLength {
		score += 2
		reasons = append(reasons, "query_length")
	}

	if markers := enumerationPattern.FindAllString(query, -1); len(markers) >= c.MinEnumerationMarkers {
		score += 3
		reasons = append(reasons, fmt.Sprintf("multi_questions(%d)", len(markers)))
	}

	if n := countKeywords(fullText, c.AnalysisKeywords); n > 0 {
		score += 2
		reasons = append(reasons, fmt.Sprintf("analysis_keywords(%d)", n))
	}

	if n := countKeywords(fullText, c.DepthKeywords); n > 0 {
		score++
		reasons = append(reasons, fmt.Sprintf("depth_keywords(%d)", n))
	}

	if len(context) > c.MinContextLength {
		score++
		reasons = append(reasons, "has_context")
	}

	return Complexity{
		Score:     score,
		IsComplex: score >= c.ComplexThreshold,
		Reasons:   reasons,
	}
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
