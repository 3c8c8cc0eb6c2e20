// Package dashboard orchestrates one fetch-aggregate cycle per viewer: it
// builds the query scope from the stored provider config and the caller's
// store/camera selection, fetches visitors, and folds them into the
// dashboard aggregate. Cycles are keyed by a monotonically increasing scope
// version so a slow stale fetch can never overwrite a newer one.
package dashboard

import (
	"time"

	"gorm.io/gorm"

	"storepulse/internal/settings"
	"storepulse/internal/stores"
	"storepulse/internal/visits"
)

// Selection is the caller's view choice: whole network (both nil), one store,
// or one camera. From/To are optional YYYY-MM-DD date strings.
type Selection struct {
	StoreID  *uint
	DeviceID *uint
	From     string
	To       string
	Timezone string
}

// BuildScope assembles the provider query scope for a client and selection.
// Precedence for the window: explicit From/To from the caller, then the
// config's fixed overrides, then the collection-epoch defaults.
func BuildScope(db *gorm.DB, cfg *settings.APIConfig, sel Selection, now time.Time) (visits.QueryScope, error) {
	loc := resolveLocation(sel.Timezone)
	scope := visits.DefaultScope(now, loc)

	if cfg != nil {
		scope.Tracks = cfg.Tracks
		scope.FaceQuality = cfg.FaceQuality
		scope.Glasses = cfg.Glasses
		scope.FacialHair = cfg.FacialHair
		scope.HairColor = cfg.HairColor
		scope.HairType = cfg.HairType
		scope.Headwear = cfg.Headwear

		if cfg.StartOverride != "" {
			if t, err := time.Parse(time.RFC3339, cfg.StartOverride); err == nil {
				scope.Start = t
			}
		}
		if cfg.EndOverride != "" {
			if t, err := time.Parse(time.RFC3339, cfg.EndOverride); err == nil {
				scope.End = t
			}
		}
	}

	if sel.From != "" {
		if t, err := time.ParseInLocation("2006-01-02", sel.From, loc); err == nil {
			scope.Start = t
		}
	}
	if sel.To != "" {
		if t, err := time.ParseInLocation("2006-01-02", sel.To, loc); err == nil {
			scope.End = visits.EndOfDay(t, loc)
		}
	}

	deviceIDs, err := stores.ScopeDeviceIDs(db, sel.StoreID, sel.DeviceID)
	if err != nil {
		return scope, err
	}
	scope.DeviceIDs = deviceIDs

	return scope, nil
}

func resolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
