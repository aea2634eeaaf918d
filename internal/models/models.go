package models

import (
	"time"
)

// DeliveryRun is one completed delivery run.
type DeliveryRun struct {
	ID           string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Mode         string            `gorm:"type:varchar(10);not null" json:"mode"`
	Template     string            `gorm:"type:text" json:"template"`
	Total        int               `json:"total"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	StartedAt    time.Time         `gorm:"index" json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Outcomes     []DeliveryOutcome `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE;" json:"outcomes,omitempty"`
	Failures     []DeliveryFailure `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE;" json:"failures,omitempty"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (DeliveryRun) TableName() string {
	return "delivery_runs"
}

// DeliveryOutcome records whether one contact of a run received everything.
type DeliveryOutcome struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	RunID   string `gorm:"index;type:varchar(36);not null" json:"run_id"`
	Number  string `gorm:"type:varchar(32)" json:"number"`
	Success bool   `json:"success"`
}

func (DeliveryOutcome) TableName() string {
	return "delivery_outcomes"
}

// DeliveryFailure is a single failed send. File is empty for text sends.
type DeliveryFailure struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	RunID  string `gorm:"index;type:varchar(36);not null" json:"run_id"`
	Number string `gorm:"type:varchar(32)" json:"number"`
	File   string `gorm:"type:varchar(255)" json:"file"`
	Error  string `gorm:"type:text" json:"error"`
}

func (DeliveryFailure) TableName() string {
	return "delivery_failures"
}

// All lists every history model in migration order.
func All() []any {
	return []any{&DeliveryRun{}, &DeliveryOutcome{}, &DeliveryFailure{}}
}
