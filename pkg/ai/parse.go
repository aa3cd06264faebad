package ai

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	requestdomain "fupm-backend/internal/request/domain"

	"github.com/goccy/go-json"
)

var (
	codeFenceRe = regexp.MustCompile("```(?:json)?\\s*")
	amountRe    = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseThreadContext decodes the extraction answer. Code fences are tolerated.
// A malformed answer returns an empty context together with the decode error.
func ParseThreadContext(text string) (*requestdomain.ThreadContext, error) {
	text = strings.TrimSpace(codeFenceRe.ReplaceAllString(text, ""))

	var raw struct {
		RecipientName interface{} `json:"recipientName"`
		Amount        interface{} `json:"amount"`
		Context       interface{} `json:"context"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return &requestdomain.ThreadContext{}, fmt.Errorf("malformed extraction output: %w", err)
	}

	out := &requestdomain.ThreadContext{}
	if name := stringValue(raw.RecipientName); name != "" {
		out.RecipientName = &name
	}
	if amount := NormalizeAmount(stringValue(raw.Amount)); amount != "" {
		out.Amount = &amount
	}
	out.Context = stringValue(raw.Context)
	return out, nil
}

// ParsePaidAnswer is true only for an exact "true" after trimming and lowercasing.
func ParsePaidAnswer(text string) bool {
	return strings.ToLower(strings.TrimSpace(text)) == "true"
}

// NormalizeAmount reduces "$1,250.50" style values to a decimal string with two places.
// Anything without a number yields "".
func NormalizeAmount(v string) string {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	match := amountRe.FindString(v)
	if match == "" {
		return ""
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil || f < 0 || f >= 1e8 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
