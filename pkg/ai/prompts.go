package ai

import (
	"fmt"
	"strings"

	requestdomain "fupm-backend/internal/request/domain"
)

const threadSeparator = "\n\n---\n\n"

// BuildFollowupPrompt renders the generation prompt for one follow-up body.
func BuildFollowupPrompt(p requestdomain.FollowupParams) string {
	recipient := orDefault(p.RecipientName, "the recipient")
	amount := "amount not specified"
	if strings.TrimSpace(p.Amount) != "" {
		amount = "$" + strings.TrimSpace(p.Amount)
	}

	var sb strings.Builder
	sb.WriteString("You are helping someone follow up on an unpaid invoice or payment request.\n\n")
	sb.WriteString("Context about the request:\n")
	fmt.Fprintf(&sb, "- Recipient: %s\n", recipient)
	fmt.Fprintf(&sb, "- Amount owed: %s\n", amount)
	fmt.Fprintf(&sb, "- Original request subject: %s\n", orDefault(p.OriginalSubject, "Invoice/Payment Request"))
	fmt.Fprintf(&sb, "- Additional context: %s\n", orDefault(p.Context, "None provided"))
	fmt.Fprintf(&sb, "- This is follow-up #%d\n", p.FollowupNumber)
	fmt.Fprintf(&sb, "- It has been %d days since the initial request\n\n", p.DaysSinceInitial)
	fmt.Fprintf(&sb, "Tone: %s - %s\n\n", p.VoiceName, p.VoiceDescription)

	switch {
	case p.NoEscalation:
		sb.WriteString("Keep the tone uniformly light regardless of how many times you have followed up.\n\n")
	default:
		if p.FollowupNumber > 1 {
			fmt.Fprintf(&sb, "This is follow-up #%d, so the urgency should naturally escalate.\n", p.FollowupNumber)
		}
		if p.FollowupNumber > 3 {
			sb.WriteString("This has been outstanding for a while, so be more direct about needing resolution.\n")
		}
		if p.FollowupNumber > 1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Write a brief, effective follow-up email. Keep it concise (3-5 sentences). ")
	sb.WriteString("Don't include a subject line - just the body text. ")
	sb.WriteString("Don't include a formal greeting or signature - just the core message.")
	return sb.String()
}

// BuildClassifyPaidPrompt asks for a strict true/false payment verdict.
func BuildClassifyPaidPrompt(bodies []string) string {
	return "Analyze this email thread and determine if payment has been made or confirmed.\n" +
		"Look for phrases like \"payment sent\", \"paid\", \"transferred\", \"receipt attached\", \"thank you for your payment\", etc.\n\n" +
		"Email thread:\n" + strings.Join(bodies, threadSeparator) + "\n\n" +
		"Respond with only \"true\" or \"false\" (no other text)."
}

// BuildExtractContextPrompt asks for the payer's name, the amount and a short summary as JSON.
func BuildExtractContextPrompt(bodies []string) string {
	return "Analyze this email thread and extract:\n" +
		"1. The name of the person being asked to pay (if mentioned)\n" +
		"2. The amount owed (if mentioned)\n" +
		"3. A brief summary of what the payment is for\n\n" +
		"Email thread:\n" + strings.Join(bodies, threadSeparator) + "\n\n" +
		"Respond in JSON format:\n" +
		"{\n" +
		"  \"recipientName\": \"name or null\",\n" +
		"  \"amount\": \"number as string or null\",\n" +
		"  \"context\": \"brief summary of what the payment is for\"\n" +
		"}"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
