package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/payment"
	"github.com/parkline/tonpark/internal/reservation"
)

// ReservationHandler drives space transitions on behalf of
// authenticated service callers.  Every route here sits behind the JWT
// middleware; the handlers translate engine errors into the HTTP
// status contract and never leak internal error text for 500s.
type ReservationHandler struct {
	Engine *reservation.Engine
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(engine *reservation.Engine) *ReservationHandler {
	if engine == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: engine}
}

// reserveRequest is the body of POST /v1/spaces/:id/reserve.
type reserveRequest struct {
	Plate         string `json:"plate"`          // vehicle plate claiming the space
	DurationHours int    `json:"duration_hours"` // hold length, 1..zone max
	PaymentRef    string `json:"payment_ref"`    // tx hash or payment blob; premium zones only
	Wallet        string `json:"wallet"`         // optional declared payer wallet
}

// plateRequest is the body of the occupy and cancel routes.
type plateRequest struct {
	Plate string `json:"plate"`
}

func sessionJSON(s model.ClientSession) echo.Map {
	return echo.Map{
		"session_id":  s.ID,
		"plate":       s.Plate,
		"space_id":    s.SpaceID,
		"status":      string(s.Status),
		"started_at":  s.StartedAt.UTC().Format(time.RFC3339),
		"reserved_at": s.ReservedAt.UTC().Format(time.RFC3339),
	}
}

// Reserve handles POST /v1/spaces/:id/reserve.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate is required"})
	}

	sess, err := h.Engine.Reserve(c.Request().Context(), reservation.ReserveRequest{
		SpaceID:       c.Param("id"),
		Plate:         req.Plate,
		DurationHours: req.DurationHours,
		PaymentRef:    model.PaymentReference(req.PaymentRef),
		SenderWallet:  req.Wallet,
	})
	if err != nil {
		return reserveError(c, err)
	}

	out := sessionJSON(sess)
	if sp, ok := h.Engine.Space(sess.SpaceID); ok && sp.Deadline != nil {
		out["deadline"] = sp.Deadline.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusCreated, out)
}

// reserveError maps engine errors onto the status contract: input and
// state problems are 400, a rejected payment is 402, a pending one is
// 409 and retryable, an indexer outage is 503.
func reserveError(c echo.Context, err error) error {
	var (
		dup      *reservation.DuplicateSessionError
		pending  *reservation.PaymentPendingError
		rejected *reservation.PaymentRejectedError
	)
	switch {
	case errors.Is(err, reservation.ErrSpaceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrNotVacant),
		errors.Is(err, reservation.ErrInvalidDuration),
		errors.Is(err, reservation.ErrDurationTooLong),
		errors.Is(err, reservation.ErrPaymentRequired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.As(err, &dup):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": dup.Error(), "space_id": dup.SpaceID})
	case errors.As(err, &rejected):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment rejected", "reason": rejected.Reason})
	case errors.As(err, &pending):
		if pending.Reason == payment.ReasonIndexerUnavailable {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment verification unavailable", "retryable": true})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment not yet confirmed", "reason": pending.Reason, "retryable": true})
	default:
		c.Logger().Errorf("reserve failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// Occupy handles POST /v1/spaces/:id/occupy.
func (h *ReservationHandler) Occupy(c echo.Context) error {
	var req plateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate is required"})
	}
	if err := h.Engine.MarkOccupied(c.Request().Context(), c.Param("id"), req.Plate); err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusOccupied)})
}

// Complete handles POST /v1/spaces/:id/complete.  Completing an
// already vacant space succeeds: the route is idempotent.
func (h *ReservationHandler) Complete(c echo.Context) error {
	if err := h.Engine.Complete(c.Request().Context(), c.Param("id")); err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusVacant)})
}

// Cancel handles POST /v1/spaces/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var req plateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate is required"})
	}
	if err := h.Engine.Cancel(c.Request().Context(), c.Param("id"), req.Plate); err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusVacant)})
}

// GetSession handles GET /v1/sessions/:plate.
func (h *ReservationHandler) GetSession(c echo.Context) error {
	sess, ok := h.Engine.Registry().Lookup(c.Param("plate"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active session for plate"})
	}
	return c.JSON(http.StatusOK, sessionJSON(sess))
}

// transitionError maps occupy/complete/cancel failures.
func transitionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, reservation.ErrSpaceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrNotReserved),
		errors.Is(err, reservation.ErrNotOwner):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		c.Logger().Errorf("transition failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
