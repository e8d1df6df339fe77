package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Profile statuses. A profile can always be retrained; there is no terminal
// state.
const (
	ProfileUntrained = "untrained"
	ProfileTraining  = "training"
	ProfileReady     = "ready"
	ProfileError     = "error"
)

// SignatureProfile is the per-student enrollment summary: centroid, sample
// count and the personalized decision threshold.
type SignatureProfile struct {
	StudentId     int64          `gorm:"primaryKey" json:"student_id"`
	Status        string         `gorm:"size:16;default:untrained" json:"status"`
	Centroid      datatypes.JSON `gorm:"type:json" json:"-"`
	CentroidVec   []float64      `gorm:"-" json:"centroid,omitempty"`
	SampleCount   int            `json:"sample_count"`
	Threshold     float64        `json:"threshold"`
	LastTrainedAt *time.Time     `json:"last_trained_at,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SignatureProfile) TableName() string {
	return "signature_profiles"
}

// DecodeCentroid fills CentroidVec from the JSON column.
func (p *SignatureProfile) DecodeCentroid() error {
	if len(p.Centroid) == 0 {
		p.CentroidVec = nil
		return nil
	}
	return json.Unmarshal(p.Centroid, &p.CentroidVec)
}

// GetProfile loads a student's profile. Returns gorm.ErrRecordNotFound when
// the student was never trained.
func GetProfile(db *gorm.DB, studentId int64) (*SignatureProfile, error) {
	var profile SignatureProfile
	if err := db.First(&profile, "student_id = ?", studentId).Error; err != nil {
		return nil, err
	}
	if err := profile.DecodeCentroid(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// BeginTraining upserts the profile into the training state and clears any
// previous error message. Centroid and threshold from earlier successful
// runs are deliberately left in place so verification keeps working while a
// retrain is in flight (or broken).
func BeginTraining(db *gorm.DB, studentId int64) error {
	profile := SignatureProfile{StudentId: studentId, Status: ProfileTraining}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":        ProfileTraining,
			"error_message": nil,
		}),
	}).Create(&profile).Error
}

// CompleteTraining moves the profile to ready with the freshly computed
// centroid, threshold and sample count.
func CompleteTraining(db *gorm.DB, studentId int64, centroid []float64, threshold float64, sampleCount int) error {
	raw, err := json.Marshal(centroid)
	if err != nil {
		return err
	}
	now := time.Now()
	return db.Model(&SignatureProfile{}).
		Where("student_id = ?", studentId).
		Updates(map[string]interface{}{
			"status":          ProfileReady,
			"centroid":        datatypes.JSON(raw),
			"threshold":       threshold,
			"sample_count":    sampleCount,
			"last_trained_at": &now,
			"error_message":   nil,
		}).Error
}

// FailTraining records the failure on the status/error columns only. This is
// a second, independent write on purpose: the last-known-good centroid and
// threshold survive a failed retrain.
func FailTraining(db *gorm.DB, studentId int64, message string) error {
	return db.Model(&SignatureProfile{}).
		Where("student_id = ?", studentId).
		Updates(map[string]interface{}{
			"status":        ProfileError,
			"error_message": message,
		}).Error
}
