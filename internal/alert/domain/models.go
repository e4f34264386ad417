package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopfloor/moldtrack/internal/threshold"
)

// Kind separates inspection-due alerts (absolute milestones) from
// progress warnings (percent-of-target tiers).
type Kind string

const (
	KindInspectionDue Kind = "inspection_due"
	KindProgress      Kind = "progress"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Alert is one raised notification for a crossed milestone.
// MilestoneShots snapshots the resolved threshold so inspection alerts can
// be deduplicated per mold+milestone while one is still active.
type Alert struct {
	ID             snowflake.ID       `gorm:"primaryKey" json:"id"`
	MoldID         snowflake.ID       `gorm:"not null;index" json:"mold_id"`
	Kind           Kind               `gorm:"type:text;not null;index" json:"kind"`
	Title          string             `gorm:"type:text;not null" json:"title"`
	Message        string             `gorm:"type:text;not null" json:"message"`
	Severity       threshold.Severity `gorm:"type:text;not null" json:"severity"`
	Status         Status             `gorm:"type:text;not null;index" json:"status"`
	MilestoneShots int64              `gorm:"not null" json:"milestone_shots"`
	Percent        int64              `gorm:"not null;default:0" json:"percent"`
	ShotsAtRaise   int64              `gorm:"not null" json:"shots_at_raise"`
	CreatedAt      time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ResolvedAt     *time.Time         `json:"resolved_at"`
}

// TableName sets the database table name.
func (Alert) TableName() string { return "alerts" }
