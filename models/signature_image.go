package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureImage is one uploaded signature sample for a student. Rows are
// only ever mutated to flip Processed once an embedding exists for them.
type SignatureImage struct {
	Id          string    `gorm:"type:char(36);primaryKey" json:"id"`
	StudentId   int64     `gorm:"index" json:"student_id"`
	StoragePath string    `json:"storage_path"`
	PublicURL   string    `json:"public_url"`
	Processed   bool      `gorm:"default:false" json:"processed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SignatureImage) TableName() string {
	return "signature_images"
}

func (img *SignatureImage) BeforeCreate(tx *gorm.DB) error {
	if img.Id == "" {
		img.Id = uuid.NewString()
	}
	return nil
}

// MarkProcessed flips the processed flag for one image row.
func (img *SignatureImage) MarkProcessed(db *gorm.DB) error {
	img.Processed = true
	return db.Model(img).Update("processed", true).Error
}
