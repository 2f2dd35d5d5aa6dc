package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lumarank/lumarank/internal/model"
)

// Score is the rubric outcome for one answer.
type Score struct {
	Value    int
	Reason   string
	Mentions bool
}

// Scorer grades answers with deterministic heuristics. Company-specific
// answers are graded on quality, problem-based answers on how prominently
// they mention the company.
type Scorer struct{}

var qualityIndicators = []string{
	"features", "pricing", "reviews", "comparison", "benefits",
	"customers", "solution", "product", "service", "platform",
}

// topicTerms maps a question topic to the words an on-topic answer uses.
var topicTerms = []struct {
	topic string
	terms []string
}{
	{"review", []string{"review", "rating", "feedback"}},
	{"feature", []string{"feature", "capability", "function"}},
	{"pric", []string{"price", "cost", "fee", "subscription"}},
}

var corporateSuffixes = []string{"inc", "corp", "ltd", "llc"}

// Score grades answer for q. A nil or blank answer scores 0. It never fails
// and always returns a value in 0..2.
func (Scorer) Score(q model.GeneratedQuestion, answer *string, company string) Score {
	if answer == nil || strings.TrimSpace(*answer) == "" {
		return Score{Reason: "No valid response"}
	}
	text := *answer
	mentioned := mentions(text, company)

	var s Score
	switch q.QuestionType {
	case model.QuestionCompanySpecific:
		s = scoreCompanySpecific(text, q.Question)
	case model.QuestionProblemBased:
		s = scoreProblemBased(text, company, mentioned)
	default:
		zap.L().Warn("score: unknown question type, scoring 0",
			zap.String("question_type", string(q.QuestionType)),
		)
		s = Score{Reason: "Unknown question type"}
	}
	s.Mentions = mentioned
	return s
}

// ScoreAll pairs answers with their questions positionally.
func (sc Scorer) ScoreAll(questions []model.GeneratedQuestion, answers []Answer, company string) []model.TestResult {
	out := make([]model.TestResult, len(questions))
	for i, q := range questions {
		a := answers[i]
		r := model.TestResult{
			Question:   q,
			AnswerText: a.Text,
			LatencyMs:  a.Latency.Milliseconds(),
		}
		if a.Err != nil {
			r.Error = failureReason(a.Err)
			r.ScoringReason = "Failed to get response"
		} else {
			s := sc.Score(q, a.Text, company)
			r.Score = s.Value
			r.ScoringReason = s.Reason
			r.MentionsCompany = s.Mentions
		}
		out[i] = r
	}
	return out
}

func scoreCompanySpecific(answer, question string) Score {
	a := strings.ToLower(answer)
	q := strings.ToLower(question)

	indicators := 0
	for _, ind := range qualityIndicators {
		if strings.Contains(a, ind) {
			indicators++
		}
	}

	addresses := false
	for _, t := range topicTerms {
		if !strings.Contains(q, t.topic) {
			continue
		}
		for _, term := range t.terms {
			if strings.Contains(a, term) {
				addresses = true
			}
		}
	}

	n := len([]rune(answer))
	switch {
	case n < 50:
		return Score{Value: 0, Reason: "Response too short"}
	case n > 200 && indicators >= 3 && addresses:
		return Score{Value: 2, Reason: "Comprehensive and relevant response"}
	case n > 100 && (indicators >= 2 || addresses):
		return Score{Value: 1, Reason: "Moderately helpful response"}
	default:
		return Score{Value: 0, Reason: "Response not particularly helpful"}
	}
}

// scoreProblemBased walks the answer's words in order. Reaching the company
// before any other corporate name scores 2; any other mention scores 1.
func scoreProblemBased(answer, company string, mentioned bool) Score {
	if !mentioned {
		return Score{Value: 0, Reason: fmt.Sprintf("%s not mentioned", company)}
	}

	target := tokens(company)
	words := strings.Fields(answer)
	for i, w := range words {
		if matchesAt(words, i, target) {
			return Score{Value: 2, Reason: fmt.Sprintf("%s mentioned first", company)}
		}
		r := []rune(w)
		if len(r) <= 2 || !unicode.IsUpper(r[0]) {
			continue
		}
		lw := wordKey(w)
		for _, suf := range corporateSuffixes {
			if lw == suf {
				return Score{Value: 1, Reason: fmt.Sprintf("%s mentioned but not first", company)}
			}
		}
	}
	return Score{Value: 1, Reason: fmt.Sprintf("%s mentioned in response", company)}
}

// matchesAt reports whether words[i:] starts with the target tokens.
func matchesAt(words []string, i int, target []string) bool {
	if len(target) == 0 || i+len(target) > len(words) {
		return false
	}
	for j, t := range target {
		if wordKey(words[i+j]) != t {
			return false
		}
	}
	return true
}

func tokens(s string) []string {
	fs := strings.Fields(s)
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if k := wordKey(f); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// wordKey folds w for comparison, dropping surrounding punctuation and a
// possessive suffix.
func wordKey(w string) string {
	k := fold(strings.TrimFunc(w, isPunct))
	for _, suf := range []string{"'s", "’s"} {
		if strings.HasSuffix(k, suf) && len(k) > len(suf) {
			return strings.TrimFunc(strings.TrimSuffix(k, suf), isPunct)
		}
	}
	return k
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// fold lowercases s and strips diacritics so "Café" matches "cafe".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(out)
}

// mentions reports whether text contains company, ignoring case and accents.
func mentions(text, company string) bool {
	c := strings.TrimSpace(company)
	if c == "" {
		return false
	}
	return strings.Contains(fold(text), fold(c))
}
