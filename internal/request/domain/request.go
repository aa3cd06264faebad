package domain

import "time"

type RequestStatus string

const (
	StatusActive    RequestStatus = "active"
	StatusClosed    RequestStatus = "closed"
	StatusCancelled RequestStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusActive, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

const (
	DefaultFollowupInterval = 7
	MinFollowupInterval     = 1
	MaxFollowupInterval     = 90

	DefaultTone = "assistant"

	// UnknownRecipient is stored when no usable address can be resolved from a thread.
	UnknownRecipient = "unknown"
)

// Request is one outstanding payment request tracked from a labeled thread.
type Request struct {
	ID               string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID           string        `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_requests_user_thread;index"`
	RecipientEmail   string        `json:"recipient_email" gorm:"not null"`
	RecipientName    *string       `json:"recipient_name"`
	Subject          *string       `json:"subject"`
	Amount           *string       `json:"amount" gorm:"type:decimal(10,2)"`
	OriginalEmailID  *string       `json:"original_email_id"`
	ThreadID         *string       `json:"thread_id" gorm:"uniqueIndex:idx_requests_user_thread"`
	Status           RequestStatus `json:"status" gorm:"type:varchar(16);not null;default:active;index"`
	FollowupInterval int           `json:"followup_interval" gorm:"not null;default:7"`
	Context          string        `json:"context" gorm:"type:text"`
	Tone             string        `json:"tone" gorm:"not null;default:assistant"`
	InitialRequestAt *time.Time    `json:"initial_request_at"`
	CreatedAt        time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time     `json:"updated_at"`

	Followups []Followup `json:"followups,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (Request) TableName() string {
	return "requests"
}

// IsActive reports whether automation may still act on the request.
func (r *Request) IsActive() bool {
	return r.Status == StatusActive
}

// Interval returns the follow-up interval in days, defaulting when unset.
func (r *Request) Interval() int {
	if r.FollowupInterval <= 0 {
		return DefaultFollowupInterval
	}
	return r.FollowupInterval
}

// HasThread reports whether the request is linked to an external thread.
func (r *Request) HasThread() bool {
	return r.ThreadID != nil && *r.ThreadID != ""
}

// Anchor is the start of the initial request, falling back to the record's creation.
func (r *Request) Anchor() time.Time {
	if r.InitialRequestAt != nil && !r.InitialRequestAt.IsZero() {
		return *r.InitialRequestAt
	}
	return r.CreatedAt
}

// RequestUpdate carries the user-editable fields of a Request. Nil fields are left unchanged.
type RequestUpdate struct {
	RecipientName    *string        `json:"recipientName"`
	RecipientEmail   *string        `json:"recipientEmail"`
	Amount           *string        `json:"amount"`
	Tone             *string        `json:"tone"`
	FollowupInterval *int           `json:"followupInterval"`
	Context          *string        `json:"context"`
	Status           *RequestStatus `json:"status"`
}
