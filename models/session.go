package models

import "time"

// Session is one class meeting that attendance is recorded against.
type Session struct {
	Id        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Session) TableName() string {
	return "sessions"
}
