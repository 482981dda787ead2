package models

import "time"

// Course owns assignments and exams and is taught by exactly one instructor.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	InstructorID uint      `gorm:"not null;index" json:"instructorId"`
	Instructor   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"instructor"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
