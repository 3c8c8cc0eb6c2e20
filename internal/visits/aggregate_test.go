package visits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utcNormalizer() *Normalizer {
	return NewNormalizer(time.UTC)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func scopeFor(start, end string) QueryScope {
	s, _ := time.Parse(time.RFC3339, start)
	e, _ := time.Parse(time.RFC3339, end)
	return QueryScope{Start: s, End: e}
}

func TestWeekdayRemapCoversAllNativeDays(t *testing.T) {
	n := utcNormalizer()

	// 2024-01-01 is a Monday, so the first week of January walks the whole
	// remapped range in order.
	for day := 1; day <= 7; day++ {
		record := VisitRecord{Start: time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)}
		c := n.Normalize(record, nil)
		assert.Equal(t, day-1, c.Weekday, "day %d of Jan 2024", day)
	}

	// Native Sunday lands at the end of the week, not the start.
	sunday := VisitRecord{Start: "2024-01-07T12:00:00Z"}
	assert.Equal(t, 6, n.Normalize(sunday, nil).Weekday)
}

func TestAgeBucketBoundaries(t *testing.T) {
	n := utcNormalizer()

	cases := []struct {
		age   float64
		label string
	}{
		{17, "18-"},
		{18, "18-24"},
		{24, "18-24"},
		{25, "25-34"},
		{34, "25-34"},
		{35, "35-44"},
		{44, "35-44"},
		{45, "45-54"},
		{54, "45-54"},
		{55, "55-64"},
		{64, "55-64"},
		{65, "65+"},
		{66, "65+"},
	}

	for _, tc := range cases {
		record := VisitRecord{Start: "2024-01-01T10:00:00Z", Age: floatPtr(tc.age)}
		c := n.Normalize(record, nil)
		assert.Equal(t, tc.label, AgeBucketLabels[c.AgeBucket], "age %.0f", tc.age)
	}
}

func TestMissingAgeFallsIntoYoungestBucket(t *testing.T) {
	n := utcNormalizer()
	c := n.Normalize(VisitRecord{Start: "2024-01-01T10:00:00Z"}, nil)
	assert.Equal(t, "18-", AgeBucketLabels[c.AgeBucket])
}

func TestDurationExclusion(t *testing.T) {
	n := utcNormalizer()

	cases := []struct {
		name  string
		start string
		end   string
	}{
		{"end before start", "2024-01-01T10:00:00Z", "2024-01-01T09:00:00Z"},
		{"end equals start", "2024-01-01T10:00:00Z", "2024-01-01T10:00:00Z"},
		{"unparsable end", "2024-01-01T10:00:00Z", "not-a-date"},
		{"unparsable start", "garbage", "2024-01-01T10:00:00Z"},
		{"missing end", "2024-01-01T10:00:00Z", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tally SkipTally
			c := n.Normalize(VisitRecord{Start: tc.start, End: tc.end}, &tally)
			assert.False(t, c.HasDuration)
			assert.Zero(t, c.DurationSeconds)
			assert.Equal(t, 1, tally.InvalidDuration)
		})
	}

	// A corrupt interval must not drag the average toward zero.
	records := []VisitRecord{
		{Start: "2024-01-01T10:00:00Z", End: "2024-01-01T10:02:00Z"},
		{Start: "2024-01-01T11:00:00Z", End: "2024-01-01T10:00:00Z"},
	}
	result := Aggregate(records, scopeFor("2024-01-01T00:00:00Z", "2024-01-01T23:59:59Z"), n)
	assert.Equal(t, 120, result.AvgVisitSeconds)
}

func TestGenderExclusivity(t *testing.T) {
	n := utcNormalizer()

	records := []VisitRecord{
		{Start: "2024-01-01T10:00:00Z", Sex: intPtr(1)},
		{Start: "2024-01-01T10:00:00Z", Sex: intPtr(2)},
		{Start: "2024-01-01T10:00:00Z", Sex: intPtr(0)},
		{Start: "2024-01-01T10:00:00Z", Sex: intPtr(99)},
		{Start: "2024-01-01T10:00:00Z"},
	}

	result := Aggregate(records, scopeFor("2024-01-01T00:00:00Z", "2024-01-01T23:59:59Z"), n)

	assert.Equal(t, 5, result.TotalVisitors)
	assert.Equal(t, 1, result.GenderStats.Male)
	assert.Equal(t, 1, result.GenderStats.Female)
	assert.Equal(t, 3, result.Skipped.UnknownGender)

	// Unclassified records stay out of the age pyramid entirely.
	totalPyramid := 0
	for _, bucket := range result.AgeStats {
		totalPyramid += bucket.M + bucket.F
	}
	assert.Equal(t, 2, totalPyramid)
}

func TestAvgVisitorsPerDaySingleDayFloor(t *testing.T) {
	n := utcNormalizer()

	records := []VisitRecord{
		{Start: "2024-03-05T09:00:00Z"},
		{Start: "2024-03-05T10:00:00Z"},
		{Start: "2024-03-05T11:00:00Z"},
	}
	result := Aggregate(records, scopeFor("2024-03-05T00:00:00Z", "2024-03-05T23:59:59Z"), n)
	assert.Equal(t, result.TotalVisitors, result.AvgVisitorsPerDay)
}

func TestAvgVisitorsPerDayInclusiveWindow(t *testing.T) {
	n := utcNormalizer()

	records := make([]VisitRecord, 10)
	for i := range records {
		records[i] = VisitRecord{Start: "2024-03-05T09:00:00Z"}
	}
	// March 1st through March 5th is five days, both endpoints counted.
	result := Aggregate(records, scopeFor("2024-03-01T00:00:00Z", "2024-03-05T23:59:59Z"), n)
	assert.Equal(t, 2, result.AvgVisitorsPerDay)
}

func TestAggregateIdempotence(t *testing.T) {
	n := utcNormalizer()

	records := []VisitRecord{
		{Start: "2024-01-01T09:00:00Z", End: "2024-01-01T09:10:00Z", Age: floatPtr(30), Sex: intPtr(1)},
		{Start: "2024-01-02T14:00:00Z", End: "2024-01-02T14:05:00Z", Age: floatPtr(70), Sex: intPtr(2)},
		{Start: "bogus"},
	}
	scope := scopeFor("2024-01-01T00:00:00Z", "2024-01-07T23:59:59Z")

	first := Aggregate(records, scope, n)
	second := Aggregate(records, scope, n)
	assert.Equal(t, first, second)
}

func TestAggregateScenarioMixedRecords(t *testing.T) {
	n := utcNormalizer()

	// 2024-01-01 is a Monday, 2024-01-02 a Tuesday.
	records := []VisitRecord{
		{Start: "2024-01-01T09:00:00Z", End: "2024-01-01T09:10:00Z", Age: floatPtr(30), Sex: intPtr(1)},
		{Start: "2024-01-02T14:00:00Z", End: "2024-01-02T14:05:00Z", Age: floatPtr(70), Sex: intPtr(2)},
		{Start: "not-a-timestamp"},
	}
	result := Aggregate(records, scopeFor("2024-01-01T00:00:00Z", "2024-01-02T23:59:59Z"), n)

	assert.Equal(t, 3, result.TotalVisitors)
	assert.Equal(t, [7]int{1, 1, 0, 0, 0, 0, 0}, result.DailyStats)
	assert.Equal(t, 450, result.AvgVisitSeconds)
	assert.Equal(t, GenderCount{Male: 1, Female: 1}, result.GenderStats)

	require.Equal(t, "25-34", result.AgeStats[4].Label)
	assert.Equal(t, 1, result.AgeStats[4].M)
	require.Equal(t, "65+", result.AgeStats[0].Label)
	assert.Equal(t, 1, result.AgeStats[0].F)

	assert.Equal(t, 1, result.Skipped.InvalidStart)
	assert.Equal(t, 1, result.HourlyStats[9])
	assert.Equal(t, 1, result.HourlyStats[14])
}

func TestAggregateEmptyRecordSet(t *testing.T) {
	n := utcNormalizer()
	result := Aggregate(nil, scopeFor("2024-01-01T00:00:00Z", "2024-01-31T23:59:59Z"), n)

	assert.Zero(t, result.TotalVisitors)
	assert.Zero(t, result.AvgVisitSeconds)
	assert.Zero(t, result.AvgVisitorsPerDay)
	assert.Equal(t, [7]int{}, result.DailyStats)
	assert.Equal(t, [24]int{}, result.HourlyStats)

	// Empty buckets still render with their labels.
	for i, bucket := range result.AgeStats {
		assert.Equal(t, AgeBucketLabels[i], bucket.Label)
		assert.Zero(t, bucket.M)
		assert.Zero(t, bucket.F)
	}
}

func TestGenderPercentZeroGuard(t *testing.T) {
	assert.Equal(t, 0, GenderPercent(0, 0))
	assert.Equal(t, 50, GenderPercent(1, 2))
	assert.Equal(t, 33, GenderPercent(1, 3))
}

func TestGenderPercentSharesOfAllVisitors(t *testing.T) {
	n := utcNormalizer()

	// One classified male among three unknown-sex records: the displayed
	// split must divide by every fetched visitor, not just the classified
	// ones, or a single classified record reads as a 100% skew.
	records := []VisitRecord{
		{Start: "2024-01-01T10:00:00Z", Sex: intPtr(1)},
		{Start: "2024-01-01T11:00:00Z"},
		{Start: "2024-01-01T12:00:00Z"},
		{Start: "2024-01-01T13:00:00Z"},
	}
	result := Aggregate(records, scopeFor("2024-01-01T00:00:00Z", "2024-01-01T23:59:59Z"), n)

	assert.Equal(t, 4, result.TotalVisitors)
	assert.Equal(t, 25, GenderPercent(result.GenderStats.Male, result.TotalVisitors))
	assert.Equal(t, 0, GenderPercent(result.GenderStats.Female, result.TotalVisitors))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "07:30", FormatDuration(450))
	assert.Equal(t, "59:59", FormatDuration(3599))
	assert.Equal(t, "01:00:00", FormatDuration(3600))
	assert.Equal(t, "02:05:09", FormatDuration(7509))
	assert.Equal(t, "00:00", FormatDuration(-5))
}

func TestDefaultScope(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	scope := DefaultScope(now, time.UTC)

	assert.Equal(t, DefaultScopeStart, scope.Start)
	assert.Equal(t, time.Date(2026, 8, 28, 23, 59, 59, 999000000, time.UTC), scope.End)
	assert.Empty(t, scope.DeviceIDs)
}

func TestInclusiveDays(t *testing.T) {
	day := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}

	assert.Equal(t, 1, InclusiveDays(day("2024-03-05T00:00:00Z"), day("2024-03-05T23:59:59Z"), time.UTC))
	assert.Equal(t, 2, InclusiveDays(day("2024-03-05T23:00:00Z"), day("2024-03-06T01:00:00Z"), time.UTC))
	assert.Equal(t, 31, InclusiveDays(day("2024-01-01T00:00:00Z"), day("2024-01-31T23:59:59Z"), time.UTC))
	assert.Equal(t, 0, InclusiveDays(day("2024-03-06T00:00:00Z"), day("2024-03-05T00:00:00Z"), time.UTC))
}
