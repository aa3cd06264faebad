package domain

import "time"

type FollowupMode string

const (
	ModeDraft FollowupMode = "draft"
	ModeSent  FollowupMode = "sent"
)

// Followup records one generated follow-up. FollowupNumber is 1-based and
// unique per request.
type Followup struct {
	ID             string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID      string       `json:"request_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_followups_request_number"`
	EmailID        *string      `json:"email_id"`
	FollowupNumber int          `json:"followup_number" gorm:"not null;uniqueIndex:idx_followups_request_number"`
	Mode           FollowupMode `json:"mode" gorm:"type:varchar(16);not null;default:draft"`
	SentAt         time.Time    `json:"sent_at" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (Followup) TableName() string {
	return "followups"
}
