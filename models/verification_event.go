package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Verification decisions.
const (
	DecisionMatch   = "match"
	DecisionNoMatch = "no_match"
	DecisionError   = "error"
)

// VerificationEvent is the append-only audit record of one verification
// attempt. Rows are never updated.
type VerificationEvent struct {
	Id                 string    `gorm:"type:char(36);primaryKey" json:"id"`
	SessionId          *int64    `gorm:"index" json:"session_id,omitempty"`
	ClaimedStudentId   *int64    `json:"claimed_student_id,omitempty"`
	PredictedStudentId *int64    `gorm:"index" json:"predicted_student_id,omitempty"`
	Score              float64   `json:"score"`
	Decision           string    `gorm:"size:16" json:"decision"`
	ImagePath          *string   `json:"image_path,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VerificationEvent) TableName() string {
	return "verification_events"
}

func (e *VerificationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	return nil
}
