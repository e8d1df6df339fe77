package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// Attendance is one student's status in one session, keyed by the
// (session, student) pair.
type Attendance struct {
	Id        int64     `gorm:"primaryKey" json:"id"`
	SessionId int64     `gorm:"uniqueIndex:idx_session_student" json:"session_id"`
	StudentId int64     `gorm:"uniqueIndex:idx_session_student" json:"student_id"`
	Status    string    `gorm:"size:16" json:"status"`
	MarkedVia *string   `gorm:"size:32" json:"marked_via,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Attendance) TableName() string {
	return "attendances"
}

// MarkPresent upserts the attendance row for (session, student) to present.
// Used as the post-match side effect of verification.
func MarkPresent(db *gorm.DB, sessionId, studentId int64, via string) error {
	row := Attendance{
		SessionId: sessionId,
		StudentId: studentId,
		Status:    AttendancePresent,
		MarkedVia: &via,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "student_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     AttendancePresent,
			"marked_via": via,
		}),
	}).Create(&row).Error
}
