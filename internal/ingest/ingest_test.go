package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

var ingestNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

const sampleCSV = `train_id,rolling_stock_validity,signalling_validity,telecom_validity,job_card_status,current_mileage,stabling_bay,passengers,stations_covered,ticket_sales,branding_hours_left,last_deep_clean_date
TS-01,2024-06-01 00:00:00,2024-07-01 00:00:00,2024-05-01 00:00:00,closed,125430.4,A-12,1200,22,15000.6,240,2024-01-30 22:00:00
TS-02,2024-06-01 00:00:00,2023-12-01 00:00:00,garbage,OPEN,98750,B-7,800.9,18,9000,0,2024-01-28 21:00:00
,2024-06-01 00:00:00,,,,,,,,,,
TS-03,,,,,,,,,,,
`

type stubWriter struct {
	got   fleet.Batch
	err   error
	calls int
}

func (s *stubWriter) InsertBatch(_ context.Context, b fleet.Batch) (fleet.Inserted, error) {
	s.calls++
	s.got = b
	if s.err != nil {
		return fleet.Inserted{}, s.err
	}
	return fleet.Inserted{Trainsets: len(b.Trainsets), JobCards: len(b.JobCards), BrandingCampaigns: len(b.Campaigns), CleaningSlots: len(b.Cleaning)}, nil
}

type stubInvalidator struct{ calls int }

func (s *stubInvalidator) Invalidate(context.Context) error { s.calls++; return nil }

func TestParseAndBuildBatch(t *testing.T) {
	rows, skipped, err := NewParser().Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 3)

	b := BuildBatch(rows, ingestNow)
	require.Len(t, b.Trainsets, 3)

	ts1 := b.Trainsets[0]
	assert.Equal(t, fleet.FitnessValid, ts1.Fitness)
	assert.Equal(t, fleet.TrainActive, ts1.Status)
	assert.Equal(t, numeric.Distance(125430), ts1.Mileage)
	assert.Equal(t, numeric.Money(15001), ts1.TicketSales)
	assert.Equal(t, "2024-05-01 00:00:00", ts1.ValidUntil)
	assert.Equal(t, "TS-01", ts1.Name)

	ts2 := b.Trainsets[1]
	assert.Equal(t, fleet.FitnessDueSoon, ts2.Fitness)
	assert.Equal(t, fleet.TrainMaintenance, ts2.Status)
	assert.Equal(t, 800, ts2.Passengers)
	assert.Equal(t, "2023-12-01 00:00:00", ts2.ValidUntil)

	ts3 := b.Trainsets[2]
	assert.Equal(t, fleet.FitnessExpired, ts3.Fitness)
	assert.Empty(t, ts3.ValidUntil)

	assert.Equal(t, fleet.JobCard{JobID: "JC_TS-01_001", Train: "TS-01", Type: "General", Status: fleet.JobClosed, Priority: fleet.LevelMedium, Assigned: "Team A"}, b.JobCards[0])
	assert.Equal(t, fleet.JobOpen, b.JobCards[1].Status)
	assert.Equal(t, fleet.LevelHigh, b.JobCards[1].Priority)
	assert.Equal(t, fleet.JobClosed, b.JobCards[2].Status)

	assert.Equal(t, "CMP_TS-01", b.Campaigns[0].CampaignID)
	assert.Equal(t, "Campaign for TS-01", b.Campaigns[0].Campaign)
	assert.Equal(t, fleet.CampaignActive, b.Campaigns[0].Status)
	assert.Equal(t, "2024-02-11", b.Campaigns[0].Expiry)
	assert.Equal(t, fleet.CampaignExpired, b.Campaigns[1].Status)

	assert.Equal(t, fleet.CleaningSlot{TrainID: "TS-01", Bay: "A-12", Time: "2024-01-30 22:00:00", Status: fleet.CleaningCompleted, Type: fleet.CleaningDeep}, b.Cleaning[0])
}

func TestParseRejectsMalformedNumbers(t *testing.T) {
	csv := "train_id,current_mileage,passengers\nTS-01,12x,3\nTS-02,100,-4\n"
	_, _, err := NewParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Rows, 2)
	assert.Equal(t, RowError{Line: 2, Field: ColCurrentMileage, Message: "not a number"}, verr.Rows[0])
	assert.Equal(t, 3, verr.Rows[1].Line)
	assert.Equal(t, "Passengers", verr.Rows[1].Field)
}

func TestParseRejectsOutOfRangeHours(t *testing.T) {
	csv := "train_id,branding_hours_left\nTS-01,3000000000\nTS-02,1e30\nTS-03,-5\n"
	_, _, err := NewParser().Parse(strings.NewReader(csv))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Rows, 3)
	assert.Equal(t, RowError{Line: 2, Field: ColBrandingHoursLeft, Message: "out of range"}, verr.Rows[0])
	assert.Equal(t, RowError{Line: 3, Field: ColBrandingHoursLeft, Message: "out of range"}, verr.Rows[1])
	assert.Equal(t, "HoursLeft", verr.Rows[2].Field)
}

func TestBuildBatchClampsCampaignExpiry(t *testing.T) {
	b := BuildBatch([]Row{{Line: 2, TrainID: "TS-01", HoursLeft: 3_000_000}}, ingestNow)
	require.Len(t, b.Campaigns, 1)
	assert.Equal(t, fleet.CampaignActive, b.Campaigns[0].Status)
	assert.Equal(t, ingestNow.Add(maxCampaignHours*time.Hour).Format("2006-01-02"), b.Campaigns[0].Expiry)
	assert.Greater(t, b.Campaigns[0].Expiry, ingestNow.Format("2006-01-02"))
}

func TestParseHeaderProblems(t *testing.T) {
	_, _, err := NewParser().Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = NewParser().Parse(strings.NewReader("name,bay\nx,y\n"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	rows, _, err := NewParser().Parse(strings.NewReader("\ufeffTrain_ID\nTS-09\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TS-09", rows[0].TrainID)
}

func TestFitnessFor(t *testing.T) {
	future := "2030-01-01 00:00:00"
	past := "2020-01-01 00:00:00"
	f, until := FitnessFor(ingestNow, future, future, future)
	assert.Equal(t, fleet.FitnessValid, f)
	assert.Equal(t, future, until)

	f, until = FitnessFor(ingestNow, future, past, "")
	assert.Equal(t, fleet.FitnessDueSoon, f)
	assert.Equal(t, past, until)

	f, _ = FitnessFor(ingestNow, past, past, past)
	assert.Equal(t, fleet.FitnessExpired, f)
}

func TestServiceIngest(t *testing.T) {
	writer := &stubWriter{}
	cache := &stubInvalidator{}
	refreshed := 0
	svc := NewService(Config{
		Writer:  writer,
		Cache:   cache,
		Refresh: func(context.Context) error { refreshed++; return nil },
		Now:     func() time.Time { return ingestNow },
	})

	res, err := svc.Ingest(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, fleet.Inserted{Trainsets: 3, JobCards: 3, BrandingCampaigns: 3, CleaningSlots: 3}, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 1, cache.calls)
	assert.Equal(t, 1, refreshed)
}

func TestServiceIngestFailures(t *testing.T) {
	writer := &stubWriter{err: errors.New("deadlock detected")}
	cache := &stubInvalidator{}
	svc := NewService(Config{Writer: writer, Cache: cache})
	_, err := svc.Ingest(context.Background(), strings.NewReader(sampleCSV))
	require.Error(t, err)
	assert.Zero(t, cache.calls, "nothing to invalidate when the write failed")

	_, err = NewService(Config{}).Ingest(context.Background(), strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, httpx.ErrUnavailable)
}

func multipartRequest(t *testing.T, target, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPIUpload(t *testing.T) {
	writer := &stubWriter{}
	h := NewHandler(NewService(Config{Writer: writer, Now: func() time.Time { return ingestNow }}), nil, nil, 0, nil)

	rr := httptest.NewRecorder()
	h.apiUpload(rr, multipartRequest(t, "/api/ingest/upload/", FileField, "fleet.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Inserted map[string]int `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{"trainsets": 3, "jobcards": 3, "branding_campaigns": 3, "cleaning_slots": 3}, body.Inserted)

	for name, req := range map[string]*http.Request{
		"missing file":  multipartRequest(t, "/api/ingest/upload/", "", "", ""),
		"wrong ext":     multipartRequest(t, "/api/ingest/upload/", FileField, "fleet.xlsx", sampleCSV),
		"not multipart": httptest.NewRequest(http.MethodPost, "/api/ingest/upload/", strings.NewReader("x")),
	} {
		rr := httptest.NewRecorder()
		h.apiUpload(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"), name)
	}
	assert.Equal(t, 1, writer.calls)
}

func TestAPIUploadRowErrors(t *testing.T) {
	h := NewHandler(NewService(Config{Writer: &stubWriter{}}), nil, nil, 0, nil)
	rr := httptest.NewRecorder()
	h.apiUpload(rr, multipartRequest(t, "/api/ingest/upload/", FileField, "bad.CSV", "train_id,passengers\nTS-1,many\n"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var body struct {
		Rows []RowError `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, ColPassengers, body.Rows[0].Field)
}

func TestAPIUploadTooLarge(t *testing.T) {
	h := NewHandler(NewService(Config{Writer: &stubWriter{}}), nil, nil, 64, nil)
	rr := httptest.NewRecorder()
	h.apiUpload(rr, multipartRequest(t, "/api/ingest/upload/", FileField, "big.csv", strings.Repeat("x", 4096)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
