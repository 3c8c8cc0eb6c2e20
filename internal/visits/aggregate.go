package visits

import (
	"fmt"
	"math"
)

// GenderCount holds the classified gender totals. Unknown sex codes count
// toward TotalVisitors only.
type GenderCount struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// AgeBucket is one row of the age pyramid, split by gender.
type AgeBucket struct {
	Label string `json:"label"`
	M     int    `json:"m"`
	F     int    `json:"f"`
}

// AggregateResult is the full derived statistic set for one query scope.
// It is recomputed wholesale on every scope change and never persisted.
type AggregateResult struct {
	TotalVisitors     int          `json:"total_visitors"`
	DailyStats        [7]int       `json:"daily_stats"`  // Monday=0 .. Sunday=6
	HourlyStats       [24]int      `json:"hourly_stats"` // local hour 0-23
	AvgVisitSeconds   int          `json:"avg_visit_seconds"`
	AvgVisitorsPerDay int          `json:"avg_visitors_per_day"`
	GenderStats       GenderCount  `json:"gender_stats"`
	AgeStats          [7]AgeBucket `json:"age_stats"` // oldest bucket first
	Skipped           SkipTally    `json:"skipped"`
}

// EmptyResult returns a zero-valued aggregate with the age pyramid labels
// filled in. Used when no provider config exists or a fetch yields nothing.
func EmptyResult() AggregateResult {
	var result AggregateResult
	for i, label := range AgeBucketLabels {
		result.AgeStats[i] = AgeBucket{Label: label}
	}
	return result
}

// Aggregate folds a fetched record set into an AggregateResult. It is a pure
// function of its input: same records and scope always produce the same
// result. TotalVisitors is the raw fetched count; each histogram applies its
// own inclusion rule from the normalizer.
func Aggregate(records []VisitRecord, scope QueryScope, normalizer *Normalizer) AggregateResult {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}

	result := EmptyResult()
	result.TotalVisitors = len(records)

	durationSum := 0.0
	durationCount := 0

	for _, record := range records {
		c := normalizer.Normalize(record, &result.Skipped)

		if c.Weekday >= 0 {
			result.DailyStats[c.Weekday]++
		}
		if c.Hour >= 0 {
			result.HourlyStats[c.Hour]++
		}
		if c.HasDuration {
			durationSum += c.DurationSeconds
			durationCount++
		}

		switch c.Gender {
		case GenderMale:
			result.GenderStats.Male++
			result.AgeStats[c.AgeBucket].M++
		case GenderFemale:
			result.GenderStats.Female++
			result.AgeStats[c.AgeBucket].F++
		}
	}

	if durationCount > 0 {
		result.AvgVisitSeconds = int(math.Round(durationSum / float64(durationCount)))
	}

	days := InclusiveDays(scope.Start, scope.End, normalizer.Location)
	if days < 1 {
		days = 1
	}
	result.AvgVisitorsPerDay = int(math.Round(float64(result.TotalVisitors) / float64(days)))

	return result
}

// GenderPercent returns the rounded share of count in total, guarding the
// zero-total case for display.
func GenderPercent(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// FormatDuration renders a second count as HH:MM:SS when it spans hours,
// otherwise MM:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
