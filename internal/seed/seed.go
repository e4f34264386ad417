// Package seed provisions demo data for local development.
package seed

import (
	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type demoMold struct {
	code        string
	name        string
	cavityCount int
	targetShots int64
}

var demoMolds = []demoMold{
	{code: "DEMO-HOUSING-A", name: "Demo housing, 4-cavity", cavityCount: 4, targetShots: 1_000_000},
	{code: "DEMO-CAP-B", name: "Demo cap, 16-cavity", cavityCount: 16, targetShots: 500_000},
	{code: "DEMO-BRACKET-C", name: "Demo bracket, single cavity", cavityCount: 1, targetShots: 0},
}

// EnsureDemoMolds inserts the demo fleet, skipping codes that already
// exist so repeated startups stay idempotent.
func EnsureDemoMolds(db *gorm.DB, node *snowflake.Node, catalog threshold.Catalog) error {
	for _, demo := range demoMolds {
		mold := assetdomain.Mold{
			ID:          node.Generate(),
			Code:        demo.code,
			Name:        demo.name,
			CavityCount: demo.cavityCount,
			Active:      true,
		}
		if demo.targetShots > 0 {
			target := demo.targetShots
			mold.TargetShots = &target
		}
		if next := catalog.NextMilestoneAbove(0); next != nil {
			shots := next.Shots
			mold.NextInspectionShots = &shots
		}

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&mold).Error; err != nil {
			return err
		}
	}
	return nil
}
