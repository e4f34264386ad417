package threshold

// Crossing is one milestone passed by a counter advance.
type Crossing struct {
	Class          Class
	ThresholdShots int64
	Label          string
	Percent        int64
	Severity       Severity
}

// Detect reports every milestone with previous < threshold <= next,
// absolute milestones first, each family in ascending order. A milestone
// already at or below previous never fires again: detection is
// edge-triggered, so a mold seeded above a milestone stays silent until it
// crosses the next one. Percent tiers are skipped when target is nil or
// not positive.
func Detect(previous, next int64, target *int64, catalog Catalog) []Crossing {
	if next <= previous {
		return nil
	}

	var crossings []Crossing

	for _, m := range catalog.Absolute {
		if m.Shots > next {
			break
		}
		if m.Shots > previous {
			crossings = append(crossings, Crossing{
				Class:          ClassAbsolute,
				ThresholdShots: m.Shots,
				Label:          m.Label,
				Severity:       m.Severity,
			})
		}
	}

	if target != nil && *target > 0 {
		for _, t := range catalog.Percent {
			shots := ceilFraction(*target, t.Percent)
			if shots > next {
				break
			}
			if shots > previous {
				crossings = append(crossings, Crossing{
					Class:          ClassPercent,
					ThresholdShots: shots,
					Percent:        t.Percent,
					Severity:       t.Severity,
				})
			}
		}
	}

	return crossings
}

// ceilFraction computes ceil(target * percent / 100) in integer math so a
// tier fires no earlier than the exact fraction.
func ceilFraction(target, percent int64) int64 {
	return (target*percent + 99) / 100
}
