package threshold

import "errors"

// Severity grades how urgently a crossed milestone needs attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Class distinguishes the two milestone families: fixed shot counts and
// percent-of-target tiers.
type Class string

const (
	ClassAbsolute Class = "absolute"
	ClassPercent  Class = "percent"
)

// AbsoluteMilestone is a fixed shot count at which a mold is due for
// inspection regardless of its target.
type AbsoluteMilestone struct {
	Shots    int64    `mapstructure:"shots" json:"shots"`
	Label    string   `mapstructure:"label" json:"label"`
	Severity Severity `mapstructure:"severity" json:"severity"`
}

// PercentTier is a percent-of-target progress milestone. It only applies
// to molds with a positive target.
type PercentTier struct {
	Percent  int64    `mapstructure:"percent" json:"percent"`
	Severity Severity `mapstructure:"severity" json:"severity"`
}

// Catalog is the full milestone configuration. Both lists must be strictly
// ascending so crossings can be reported in order with a single pass.
type Catalog struct {
	Absolute []AbsoluteMilestone `mapstructure:"absolute" json:"absolute"`
	Percent  []PercentTier       `mapstructure:"percent" json:"percent"`
}

var (
	ErrEmptyCatalog         = errors.New("empty_threshold_catalog")
	ErrMilestoneNotPositive = errors.New("milestone_shots_not_positive")
	ErrMilestoneNotSorted   = errors.New("milestones_not_sorted")
	ErrTierOutOfRange       = errors.New("percent_tier_out_of_range")
	ErrTierNotSorted        = errors.New("percent_tiers_not_sorted")
)

func (c Catalog) Validate() error {
	if len(c.Absolute) == 0 && len(c.Percent) == 0 {
		return ErrEmptyCatalog
	}

	var prevShots int64
	for _, m := range c.Absolute {
		if m.Shots <= 0 {
			return ErrMilestoneNotPositive
		}
		if m.Shots <= prevShots {
			return ErrMilestoneNotSorted
		}
		prevShots = m.Shots
	}

	var prevPercent int64
	for _, t := range c.Percent {
		if t.Percent < 1 || t.Percent > 100 {
			return ErrTierOutOfRange
		}
		if t.Percent <= prevPercent {
			return ErrTierNotSorted
		}
		prevPercent = t.Percent
	}

	return nil
}

// NextMilestoneAbove returns the lowest absolute milestone strictly above
// shots, or nil when the mold is already past the whole table.
func (c Catalog) NextMilestoneAbove(shots int64) *AbsoluteMilestone {
	for _, m := range c.Absolute {
		if m.Shots > shots {
			milestone := m
			return &milestone
		}
	}
	return nil
}
