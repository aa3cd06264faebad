package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	requestdomain "fupm-backend/internal/request/domain"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagRe    = regexp.MustCompile(`(?i)<(br|/p|/div|/li|/tr|/h[1-6])[^>]*>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

func convertMessage(msg *gmail.Message) requestdomain.ThreadMessage {
	out := requestdomain.ThreadMessage{ID: msg.Id}
	if msg.Payload == nil {
		return out
	}
	out.From = getHeader(msg.Payload.Headers, "From")
	out.To = getHeader(msg.Payload.Headers, "To")
	out.Subject = getHeader(msg.Payload.Headers, "Subject")
	out.Date = getHeader(msg.Payload.Headers, "Date")

	plain, htmlBody := findBodies(msg.Payload)
	switch {
	case strings.TrimSpace(plain) != "":
		out.Body = plain
	case htmlBody != "":
		out.Body = stripHTML(htmlBody)
	}
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// findBodies walks the MIME tree and returns the first text/plain and text/html parts.
func findBodies(payload *gmail.MessagePart) (plain, htmlBody string) {
	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			mimeType := strings.ToLower(part.MimeType)
			switch {
			case strings.HasPrefix(mimeType, "text/plain") && plain == "":
				plain = decodeBody(part.Body.Data)
			case strings.HasPrefix(mimeType, "text/html") && htmlBody == "":
				htmlBody = decodeBody(part.Body.Data)
			}
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)
	return plain, htmlBody
}

func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}

// stripHTML reduces an HTML body to readable text.
func stripHTML(s string) string {
	s = scriptStyleRe.ReplaceAllString(s, "")
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// buildRawMessage renders a plain-text RFC 5322 message.
func buildRawMessage(from string, out requestdomain.OutgoingMessage, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	h.SetAddressList("To", []*mail.Address{{Name: out.ToName, Address: out.To}})
	h.SetSubject(out.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("unable to compose message: %w", err)
	}
	if _, err := io.WriteString(w, out.Body); err != nil {
		return nil, fmt.Errorf("unable to compose message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to compose message: %w", err)
	}
	return buf.Bytes(), nil
}
