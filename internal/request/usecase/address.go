package usecase

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	requestdomain "fupm-backend/internal/request/domain"
)

var (
	bracketAddressRe = regexp.MustCompile(`.*<(.+)>.*`)
	bracketRe        = regexp.MustCompile(`<.+>`)
)

// parseAddressHeader splits a From/To header into display name and address.
// Only the first address of a list is used. Headers without a mailbox, such as
// "undisclosed-recipients:;", yield an empty address.
func parseAddressHeader(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	if list, err := mail.ParseAddressList(header); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Name), strings.TrimSpace(list[0].Address)
	}

	// Loose headers the RFC parser rejects, e.g. unquoted commas in the name
	if m := bracketAddressRe.FindStringSubmatch(header); m != nil {
		address = strings.TrimSpace(m[1])
		if !strings.Contains(address, "@") {
			return "", ""
		}
		name = strings.TrimSpace(bracketRe.ReplaceAllString(header, ""))
		name = strings.Trim(name, `"' `)
		return name, address
	}
	if !strings.Contains(header, "@") {
		return "", ""
	}
	return "", header
}

// resolveCounterparty picks the other party of a thread from its first message.
// When the user wrote the first message the recipient is in To, otherwise in From.
// A user without a known address is taken as the sender.
func resolveCounterparty(first requestdomain.ThreadMessage, userEmail string) (name, address string) {
	header := first.From
	if isUserAddress(first.From, userEmail) {
		header = first.To
	}

	name, address = parseAddressHeader(header)
	if address == "" {
		address = requestdomain.UnknownRecipient
	}
	return name, address
}

func isUserAddress(header, userEmail string) bool {
	userEmail = strings.TrimSpace(userEmail)
	if userEmail == "" {
		return true
	}
	_, from := parseAddressHeader(header)
	return strings.EqualFold(from, userEmail)
}

// parseMessageDate parses an RFC 5322 Date header.
func parseMessageDate(value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, false
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
