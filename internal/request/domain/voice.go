package domain

import "time"

// Voice is a named writing style for generated follow-ups.
type Voice struct {
	ID           string    `json:"id" yaml:"-" gorm:"primaryKey;type:varchar(36)"`
	Name         string    `json:"name" yaml:"name" gorm:"uniqueIndex;not null"`
	Label        string    `json:"label" yaml:"label" gorm:"not null"`
	Description  string    `json:"description" yaml:"description" gorm:"type:text;not null"`
	Examples     *string   `json:"examples" yaml:"examples" gorm:"type:text"`
	Color        string    `json:"color" yaml:"color"`
	SortOrder    int       `json:"sort_order" yaml:"sort_order" gorm:"not null;default:0"`
	NoEscalation bool      `json:"no_escalation" yaml:"no_escalation" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// TableName specifies the table name for GORM
func (Voice) TableName() string {
	return "voices"
}
