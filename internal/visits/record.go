// Package visits holds the visitor-analytics core: the typed visit record,
// the normalizer that classifies raw fields into histogram buckets, and the
// aggregator that folds a record set into dashboard statistics.
package visits

import (
	"encoding/json"
	"time"
)

// Sex codes used by the analytics provider. Anything else is unclassified.
const (
	SexMale   = 1
	SexFemale = 2
)

// AdditionalAttributes is the fixed attribute list requested from the
// provider on every visitor query.
var AdditionalAttributes = []string{"smile", "pitch", "yaw", "x", "y", "height"}

// VisitRecord is one raw visitor-detection event. Timestamps stay raw
// strings and optional numerics are pointers: validation and coercion happen
// in the normalizer, never at decode time, so a malformed field can degrade a
// single aggregate instead of failing the whole decode.
type VisitRecord struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Age     *float64 `json:"age"`
	Sex     *int     `json:"sex"`
	Devices []int64  `json:"devices"`

	// Soft attributes, passed through but never aggregated here.
	FaceQuality    *float64        `json:"face_quality,omitempty"`
	TracksDuration *float64        `json:"tracks_duration,omitempty"`
	HairColor      string          `json:"hair_color,omitempty"`
	HairType       string          `json:"hair_type,omitempty"`
	Headwear       string          `json:"headwear,omitempty"`
	Glasses        string          `json:"glasses,omitempty"`
	Smile          *float64        `json:"smile,omitempty"`
	Pitch          *float64        `json:"pitch,omitempty"`
	Yaw            *float64        `json:"yaw,omitempty"`
	Campaigns      json.RawMessage `json:"campaigns,omitempty"`
}

// QueryScope defines one aggregation request: the date window, the optional
// device filter derived from a store/camera selection, and the soft-attribute
// toggles forwarded to the provider. Immutable per fetch.
type QueryScope struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	DeviceIDs []int64   `json:"device_ids,omitempty"`

	Tracks      bool `json:"tracks"`
	FaceQuality bool `json:"face_quality"`
	Glasses     bool `json:"glasses"`
	FacialHair  bool `json:"facial_hair"`
	HairColor   bool `json:"hair_color"`
	HairType    bool `json:"hair_type"`
	Headwear    bool `json:"headwear"`
}

// DefaultScopeStart is the collection epoch used when no explicit start is
// configured for a client.
var DefaultScopeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultScope returns the scope used when the caller supplies no explicit
// window: the collection epoch through the end of today in loc.
func DefaultScope(now time.Time, loc *time.Location) QueryScope {
	return QueryScope{
		Start: DefaultScopeStart,
		End:   EndOfDay(now, loc),
	}
}

// EndOfDay normalizes t to 23:59:59.999 in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999000000, loc)
}

// InclusiveDays returns the calendar day count between start and end,
// counting both endpoints. Never less than 1 for a non-inverted window.
func InclusiveDays(start, end time.Time, loc *time.Location) int {
	s := start.In(loc)
	e := end.In(loc)
	startDay := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	endDay := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	if endDay.Before(startDay) {
		return 0
	}
	// Round the hour delta so DST transitions don't shift the day count.
	return int(endDay.Sub(startDay).Hours()/24+0.5) + 1
}
