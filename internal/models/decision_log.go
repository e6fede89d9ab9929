package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// One rate limit decision taken by the HTTP pipeline.
type DecisionLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	RequestID    string    `gorm:"size:64" json:"request_id,omitempty"`
	Key          string    `gorm:"index;not null" json:"key"`
	IdentityType string    `gorm:"size:32;not null" json:"identity_type"`
	Algorithm    string    `gorm:"size:32;not null" json:"algorithm"`
	Outcome      Outcome   `gorm:"size:16;index;not null" json:"outcome"`
	Limit        int       `gorm:"column:max_requests" json:"limit"`
	Remaining    int       `json:"remaining"`
	Method       string    `gorm:"size:16" json:"method"`
	Path         string    `gorm:"index" json:"path"`
	IPAddress    string    `json:"ip_address"`
}

func (d *DecisionLog) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	return nil
}

func (DecisionLog) TableName() string {
	return "rate_limit_decisions"
}
