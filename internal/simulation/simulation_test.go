package simulation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/tableview"
)

func TestRunReturnsFixedAssessment(t *testing.T) {
	res, err := NewService(nil).Run(context.Background(), Request{Description: "  3 trains unavailable during morning rush "})
	require.NoError(t, err)
	assert.Equal(t, "3 trains unavailable during morning rush", res.Description)
	require.Len(t, res.Impact, 4)
	require.Len(t, res.Solutions, 3)
	assert.Equal(t, "Service Frequency", res.Impact[0].Metric)
	assert.Equal(t, tableview.ToneError, res.Impact[0].Tone())
	assert.Equal(t, tableview.ToneWarning, res.Impact[1].Tone())
	assert.Equal(t, tableview.ToneSuccess, res.Impact[3].Tone())
	assert.Equal(t, "$2,500", res.Solutions[2].Cost)
}

func TestRunValidatesDescription(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Run(context.Background(), Request{Description: "   "})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.ErrorContains(t, err, "required")

	_, err = svc.Run(context.Background(), Request{Description: strings.Repeat("x", MaxDescription+1)})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.ErrorContains(t, err, "at most")

	_, err = svc.Run(context.Background(), Request{Description: strings.Repeat("x", MaxDescription)})
	assert.NoError(t, err)
}

func TestImpactToneUnknownStatus(t *testing.T) {
	assert.Equal(t, tableview.ToneDefault, Impact{Status: "catastrophic"}.Tone())
}

func TestRunAPI(t *testing.T) {
	h := NewHandler(NewService(nil), nil, nil, nil)

	rr := httptest.NewRecorder()
	h.run(rr, httptest.NewRequest(http.MethodPost, "/api/simulations/run/", strings.NewReader(`{"description":"Signal failure affecting 2 routes"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"description":"Signal failure affecting 2 routes"`)
	assert.Contains(t, rr.Body.String(), `"status":"critical"`)

	rr = httptest.NewRecorder()
	h.run(rr, httptest.NewRequest(http.MethodPost, "/api/simulations/run/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	h.run(rr, httptest.NewRequest(http.MethodPost, "/api/simulations/run/", strings.NewReader(`{"scenario":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
