package displayforce

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"storepulse/internal/visits"
)

// visitorListRequest is the POST body for one visitor page.
type visitorListRequest struct {
	Start                string   `json:"start"`
	End                  string   `json:"end"`
	Tracks               bool     `json:"tracks"`
	FaceQuality          bool     `json:"face_quality"`
	Glasses              bool     `json:"glasses"`
	FacialHair           bool     `json:"facial_hair"`
	HairColor            bool     `json:"hair_color"`
	HairType             bool     `json:"hair_type"`
	Headwear             bool     `json:"headwear"`
	AdditionalAttributes []string `json:"additional_attributes"`
	Devices              []int64  `json:"devices,omitempty"`
	Limit                int      `json:"limit"`
	Offset               int      `json:"offset"`
}

type visitorListResponse struct {
	Payload    []visits.VisitRecord `json:"payload"`
	Pagination struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"pagination"`
}

// FetchVisitors retrieves the complete visitor set for a scope, walking pages
// sequentially in offset order. The loop stops when a page comes back short
// of the limit or the accumulated count reaches the server-reported total,
// whichever happens first; the dual condition survives both a server that
// never shrinks its last page and a total that disagrees with page contents.
//
// A non-2xx response aborts the remaining pages but returns everything
// accumulated so far alongside the error. A transport failure before any page
// lands returns an empty slice: callers must treat empty as unknown, not as
// provably zero, and the returned error plus the skip tally let them tell the
// difference.
func (c *Client) FetchVisitors(ctx context.Context, scope visits.QueryScope) ([]visits.VisitRecord, error) {
	// Nil DeviceIDs means the whole network; an empty non-nil slice means a
	// store or camera selection that resolved to zero devices. Nothing can
	// match the latter, and sending it would drop the filter from the request
	// body and return network-wide numbers for an empty store.
	if scope.DeviceIDs != nil && len(scope.DeviceIDs) == 0 {
		c.logger.Debug("selection has no devices, skipping visitor fetch")
		return nil, nil
	}

	body := visitorListRequest{
		Start:                scope.Start.Format(time.RFC3339),
		End:                  scope.End.Format(time.RFC3339),
		Tracks:               scope.Tracks,
		FaceQuality:          scope.FaceQuality,
		Glasses:              scope.Glasses,
		FacialHair:           scope.FacialHair,
		HairColor:            scope.HairColor,
		HairType:             scope.HairType,
		Headwear:             scope.Headwear,
		AdditionalAttributes: visits.AdditionalAttributes,
		Devices:              scope.DeviceIDs,
		Limit:                DefaultPageLimit,
	}

	var accumulated []visits.VisitRecord
	offset := 0

	for {
		body.Offset = offset

		var page visitorListResponse
		if err := c.postJSON(ctx, c.cfg.AnalyticsPath, body, &page); err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				// Keep what we already have; only the unfetched remainder is lost.
				c.logger.Warn("visitor page request failed, returning partial set",
					slog.Int("status", statusErr.StatusCode),
					slog.Int("accumulated", len(accumulated)))
				return accumulated, err
			}
			c.logger.Warn("visitor fetch aborted", slog.Any("error", err))
			return nil, err
		}

		accumulated = append(accumulated, page.Payload...)

		if len(page.Payload) < DefaultPageLimit {
			break
		}
		if page.Pagination.Total > 0 && len(accumulated) >= page.Pagination.Total {
			break
		}

		offset += DefaultPageLimit
	}

	c.logger.Debug("visitor fetch complete",
		slog.Int("records", len(accumulated)),
		slog.Int("pages", offset/DefaultPageLimit+1))
	return accumulated, nil
}
