package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo  TaskStatus = "todo"
	TaskDoing TaskStatus = "doing"
	TaskDone  TaskStatus = "done"
)

// ValidTaskStatus reports whether s is one of the known workflow states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskDoing, TaskDone:
		return true
	}
	return false
}

type Task struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	OrgID      uuid.UUID  `gorm:"type:char(36);not null;index" json:"org_id"`
	ProjectID  uuid.UUID  `gorm:"type:char(36);not null;index" json:"project_id"`
	Title      string     `gorm:"type:varchar(300);not null" json:"title"`
	Status     TaskStatus `gorm:"type:varchar(10);not null;default:'todo'" json:"status"`
	CreatedBy  uuid.UUID  `gorm:"type:char(36);not null" json:"created_by"`
	AssignedTo *uuid.UUID `gorm:"type:char(36)" json:"assigned_to,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
