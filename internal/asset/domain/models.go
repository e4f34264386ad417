// Package domain contains persistence models for mold assets.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Mold is a physical production tool tracked by the shot counter.
// CurrentShots is advanced only by the production recording transaction;
// nothing else writes it.
type Mold struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Code                string       `gorm:"type:text;not null;uniqueIndex:ux_molds_code" json:"code"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	CavityCount         int          `gorm:"not null;default:1" json:"cavity_count"`
	CurrentShots        int64        `gorm:"not null;default:0" json:"current_shots"`
	TargetShots         *int64       `json:"target_shots"`
	NextInspectionShots *int64       `json:"next_inspection_shots"`
	Active              bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Mold) TableName() string { return "molds" }
