package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Distance returns the edit distance between two normalized strings.
func Distance(a, b string) int {
	r1 := []rune(normalize(a))
	r2 := []rune(normalize(b))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rolling rows
	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

// Tolerance is the edit distance allowed for a query of the given length.
func Tolerance(query string) int {
	n := len([]rune(query))
	switch {
	case n <= 3:
		return 0
	case n >= 8:
		return 2
	default:
		return 1
	}
}

// Match reports whether query appears in any of the fields, either as a
// substring, a word prefix, or a word within the query's tolerance.
func Match(query string, fields ...string) bool {
	q := normalize(query)
	if q == "" {
		return true
	}
	limit := Tolerance(q)
	for _, field := range fields {
		text := normalize(field)
		if strings.Contains(text, q) {
			return true
		}
		for _, word := range splitWords(text) {
			if strings.HasPrefix(word, q) || Distance(q, word) <= limit {
				return true
			}
		}
	}
	return false
}

// Score ranks a request against a query. Subject hits outweigh counterparty
// name hits, which outweigh address hits.
func Score(query, subject, name, email string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	return fieldScore(q, subject, 100) + fieldScore(q, name, 80) + fieldScore(q, email, 60)
}

func fieldScore(q, field string, weight float64) float64 {
	text := normalize(field)
	if text == "" {
		return 0
	}
	words := splitWords(text)
	if strings.Contains(text, q) {
		score := weight
		for _, w := range words {
			if w == q {
				return score + weight/2
			}
		}
		return score
	}

	best := 0.0
	limit := Tolerance(q)
	for _, w := range words {
		s := 0.0
		if strings.HasPrefix(w, q) {
			s = weight * 0.4
		}
		if d := Distance(q, w); d <= limit {
			s = max(s, weight*0.5-float64(d)*weight*0.15)
		}
		best = max(best, s)
	}
	return best
}

// normalize lowercases, strips diacritics and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
