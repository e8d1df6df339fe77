package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student is one enrollable person. The two signature URL fields are legacy
// leftovers from before dedicated SignatureImage rows existed; enrollment
// migrates them into image rows on first use.
type Student struct {
	Id            int64          `gorm:"primaryKey" json:"id"`
	Name          string         `json:"name"`
	StudentNumber string         `gorm:"index" json:"student_number"`
	SignatureURL  *string        `json:"signature_url,omitempty"`
	SignatureURLs datatypes.JSON `gorm:"type:json" json:"signature_urls,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}
