package visits

import "time"

// Gender is the normalized classification of a record's sex code.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// Age bucket labels, oldest first. The pyramid always renders all seven
// buckets in this order, populated or not.
var AgeBucketLabels = [7]string{"65+", "55-64", "45-54", "35-44", "25-34", "18-24", "18-"}

// timestampLayouts are tried in order when parsing provider timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Classification is the per-record output of the normalizer: one bucket key
// per aggregate, each independently validated. A field that fails validation
// disables only its own aggregate.
type Classification struct {
	Weekday         int // Monday=0 .. Sunday=6, -1 when start is unparsable
	Hour            int // local hour 0-23, -1 when start is unparsable
	DurationSeconds float64
	HasDuration     bool
	Gender          Gender
	AgeBucket       int // index into AgeBucketLabels
}

// SkipTally counts records excluded from individual aggregates, so a caller
// can tell an empty window from a window full of malformed data.
type SkipTally struct {
	InvalidStart    int `json:"invalid_start"`
	InvalidDuration int `json:"invalid_duration"`
	UnknownGender   int `json:"unknown_gender"`
}

// Normalizer classifies raw visit records. Hour and weekday buckets are
// computed in Location; the provider reports wall-clock timestamps.
type Normalizer struct {
	Location *time.Location
}

// NewNormalizer returns a normalizer bucketing in the given location,
// defaulting to the system location.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Location: loc}
}

// Normalize classifies one record. It never fails: malformed fields degrade
// to exclusion from the affected aggregate and are counted in tally.
func (n *Normalizer) Normalize(record VisitRecord, tally *SkipTally) Classification {
	c := Classification{Weekday: -1, Hour: -1}

	start, startOK := n.parseTimestamp(record.Start)
	if startOK {
		// Go counts weekdays from Sunday=0; the dashboard week starts Monday.
		c.Weekday = (int(start.Weekday()) + 6) % 7
		c.Hour = start.Hour()
	} else if tally != nil {
		tally.InvalidStart++
	}

	end, endOK := n.parseTimestamp(record.End)
	if startOK && endOK && end.After(start) {
		c.DurationSeconds = end.Sub(start).Seconds()
		c.HasDuration = true
	} else if tally != nil {
		tally.InvalidDuration++
	}

	c.Gender = classifySex(record.Sex)
	if c.Gender == GenderUnknown && tally != nil {
		tally.UnknownGender++
	}

	age := 0.0
	if record.Age != nil {
		age = *record.Age
	}
	c.AgeBucket = ageBucketIndex(age)

	return c
}

func (n *Normalizer) parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, n.Location); err == nil {
			return t.In(n.Location), true
		}
	}
	return time.Time{}, false
}

func classifySex(sex *int) Gender {
	if sex == nil {
		return GenderUnknown
	}
	switch *sex {
	case SexMale:
		return GenderMale
	case SexFemale:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// ageBucketIndex maps an age onto AgeBucketLabels. Ages below 18, including
// the zero used for non-numeric input, land in the youngest bucket.
func ageBucketIndex(age float64) int {
	switch {
	case age >= 65:
		return 0
	case age >= 55:
		return 1
	case age >= 45:
		return 2
	case age >= 35:
		return 3
	case age >= 25:
		return 4
	case age >= 18:
		return 5
	default:
		return 6
	}
}
