package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// FollowupAction decides whether generated follow-ups are left as drafts or sent.
type FollowupAction string

const (
	FollowupActionDraft FollowupAction = "draft"
	FollowupActionSend  FollowupAction = "send"
)

type User struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email            string         `json:"email" gorm:"uniqueIndex;not null"`
	Name             string         `json:"name"`
	AccessToken      string         `json:"-" gorm:"type:text"` // Never return tokens in JSON
	RefreshToken     string         `json:"-" gorm:"type:text"`
	TokenExpiry      *time.Time     `json:"-"`
	TokenRefreshedAt *time.Time     `json:"-"`
	GmailLabelID     string         `json:"-"`
	FollowupAction   FollowupAction `json:"followup_action" gorm:"type:varchar(16);not null;default:draft"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasMailCredential reports whether the user has connected a mailbox.
func (u *User) HasMailCredential() bool {
	return u != nil && u.AccessToken != ""
}

// Action returns the configured follow-up action, treating anything unknown as draft.
func (u *User) Action() FollowupAction {
	if u != nil && u.FollowupAction == FollowupActionSend {
		return FollowupActionSend
	}
	return FollowupActionDraft
}

// ValidFollowupAction reports whether v names a supported action.
func ValidFollowupAction(v string) bool {
	return v == string(FollowupActionDraft) || v == string(FollowupActionSend)
}

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error
