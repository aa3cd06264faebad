package domain

// ThreadMessage is one message of a conversation as seen by the core.
// Body is plain text; HTML-only messages arrive with markup stripped.
type ThreadMessage struct {
	ID      string
	From    string
	To      string
	Subject string
	Date    string
	Body    string
}

// OutgoingMessage is a follow-up to be drafted or sent inside an existing thread.
type OutgoingMessage struct {
	ThreadID string
	To       string
	ToName   string
	Subject  string
	Body     string
}

// ThreadContext is what the language model could extract from a thread.
type ThreadContext struct {
	RecipientName *string `json:"recipientName"`
	Amount        *string `json:"amount"`
	Context       string  `json:"context"`
}

// FollowupParams are the generation inputs for one follow-up body.
type FollowupParams struct {
	RecipientName    string
	Amount           string
	Context          string
	OriginalSubject  string
	VoiceName        string
	VoiceDescription string
	NoEscalation     bool
	FollowupNumber   int
	DaysSinceInitial int
}
