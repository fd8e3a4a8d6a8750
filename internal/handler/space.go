package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/reservation"
)

// SpaceHandler serves the read side of the space status API: the
// current space list with zone reference data, single-space lookups
// and deep-link validation.  These endpoints are public and sit
// behind the response cache.
type SpaceHandler struct {
	Engine *reservation.Engine
}

// NewSpaceHandler constructs a SpaceHandler.
func NewSpaceHandler(engine *reservation.Engine) *SpaceHandler {
	if engine == nil {
		panic("nil engine passed to NewSpaceHandler")
	}
	return &SpaceHandler{Engine: engine}
}

// spaceJSON is the wire shape of one space.  Zone data is embedded so
// the UI layer never has to re-join reference data.
type spaceJSON struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Plate         string   `json:"plate,omitempty"`
	ReservedAt    *string  `json:"reserved_at,omitempty"`
	Deadline      *string  `json:"deadline,omitempty"`
	OccupiedSince *string  `json:"occupied_since,omitempty"`
	Zone          zoneJSON `json:"zone"`
}

type zoneJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Premium          bool   `json:"premium"`
	HourlyRateNano   int64  `json:"hourly_rate_nano"`
	MaxDurationHours int    `json:"max_duration_hours"`
}

func (h *SpaceHandler) render(sp model.ParkingSpace) spaceJSON {
	out := spaceJSON{
		ID:            sp.ID,
		Status:        string(sp.Status),
		Plate:         sp.Plate,
		ReservedAt:    fmtTime(sp.ReservedAt),
		Deadline:      fmtTime(sp.Deadline),
		OccupiedSince: fmtTime(sp.OccupiedSince),
	}
	if z, ok := h.Engine.Zone(sp.ZoneID); ok {
		out.Zone = zoneJSON{
			ID:               z.ID,
			Name:             z.Name,
			Premium:          z.Premium,
			HourlyRateNano:   z.HourlyRateNano,
			MaxDurationHours: z.MaxDurationHours,
		}
	}
	return out
}

func fmtTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ListSpaces handles GET /v1/spaces.  It returns every space with its
// current status and zone.
func (h *SpaceHandler) ListSpaces(c echo.Context) error {
	spaces := h.Engine.Snapshot()
	out := make([]spaceJSON, 0, len(spaces))
	for _, sp := range spaces {
		out = append(out, h.render(sp))
	}
	return c.JSON(http.StatusOK, echo.Map{"spaces": out})
}

// GetSpace handles GET /v1/spaces/:id.
func (h *SpaceHandler) GetSpace(c echo.Context) error {
	sp, ok := h.Engine.Space(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
	}
	return c.JSON(http.StatusOK, h.render(sp))
}

// ValidateDeepLink handles GET /v1/deeplink/validate?space_id=…  An
// external caller presenting a deep-linked space checks here that the
// space exists and is still vacant before starting the reservation
// flow.  Link parsing itself is the caller's concern.
func (h *SpaceHandler) ValidateDeepLink(c echo.Context) error {
	spaceID := c.QueryParam("space_id")
	if spaceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "space_id is required"})
	}
	switch err := h.Engine.ValidateDeepLink(spaceID); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"valid": true})
	case reservation.ErrSpaceNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
	default:
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "reason": "space not vacant"})
	}
}
