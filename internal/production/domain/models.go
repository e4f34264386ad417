// Package domain holds the production recording models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ProductionEntry is one immutable audit record of a counter advance.
// PreviousShots and NewShots snapshot the counter around this entry, and
// CavityCountAtTime pins the cavity count used for the increment so later
// tooling changes do not rewrite history.
type ProductionEntry struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	MoldID            snowflake.ID      `gorm:"not null;index" json:"mold_id"`
	ProducedDate      time.Time         `gorm:"type:date;not null" json:"produced_date"`
	Shift             string            `gorm:"type:text" json:"shift"`
	Quantity          int64             `gorm:"not null" json:"quantity"`
	ShotIncrement     int64             `gorm:"not null" json:"shot_increment"`
	CavityCountAtTime int               `gorm:"not null" json:"cavity_count_at_time"`
	PreviousShots     int64             `gorm:"not null" json:"previous_shots"`
	NewShots          int64             `gorm:"not null" json:"new_shots"`
	RecordedBy        string            `gorm:"type:text" json:"recorded_by"`
	Note              string            `gorm:"type:text" json:"note"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ProductionEntry) TableName() string { return "production_entries" }
