package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, h echo.HandlerFunc, target string, setup func(echo.Context)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	require.NoError(t, h(c))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestListSpaces(t *testing.T) {
	h := NewSpaceHandler(testEngine(nil))
	rec, out := getJSON(t, h.ListSpaces, "/v1/spaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	spaces, ok := out["spaces"].([]any)
	require.True(t, ok)
	assert.Len(t, spaces, 2)

	first := spaces[0].(map[string]any)
	assert.Equal(t, "VACANT", first["status"])
	zone := first["zone"].(map[string]any)
	assert.NotEmpty(t, zone["id"])
	assert.NotEmpty(t, zone["name"])
}

func TestGetSpace(t *testing.T) {
	h := NewSpaceHandler(testEngine(nil))

	rec, out := getJSON(t, h.GetSpace, "/v1/spaces/p1", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("p1")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", out["id"])
	zone := out["zone"].(map[string]any)
	assert.Equal(t, true, zone["premium"])
	assert.Equal(t, float64(1_000_000_000), zone["hourly_rate_nano"])

	rec, _ = getJSON(t, h.GetSpace, "/v1/spaces/nope", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("nope")
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateDeepLink(t *testing.T) {
	engine := testEngine(nil)
	h := NewSpaceHandler(engine)
	rh := NewReservationHandler(engine)

	rec, out := getJSON(t, h.ValidateDeepLink, "/v1/deeplink/validate?space_id=s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["valid"])

	rec, _ = getJSON(t, h.ValidateDeepLink, "/v1/deeplink/validate?space_id=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = getJSON(t, h.ValidateDeepLink, "/v1/deeplink/validate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A claimed space is a well-formed link that is no longer usable.
	r, _ := postJSON(t, rh.Reserve, "/v1/spaces/s1/reserve", "s1", `{"plate":"AB123CD","duration_hours":1}`)
	require.Equal(t, http.StatusCreated, r.Code)

	rec, out = getJSON(t, h.ValidateDeepLink, "/v1/deeplink/validate?space_id=s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["valid"])
}
