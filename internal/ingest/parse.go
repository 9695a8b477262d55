// Package ingest loads trainset CSV exports into the fleet store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

// CSV columns. Only train_id is mandatory in the header; missing columns read
// as empty.
const (
	ColTrainID             = "train_id"
	ColRollingStock        = "rolling_stock_validity"
	ColSignalling          = "signalling_validity"
	ColTelecom             = "telecom_validity"
	ColJobCardStatus       = "job_card_status"
	ColCurrentMileage      = "current_mileage"
	ColStablingBay         = "stabling_bay"
	ColPassengers          = "passengers"
	ColStationsCovered     = "stations_covered"
	ColTicketSales         = "ticket_sales"
	ColBrandingHoursLeft   = "branding_hours_left"
	ColLastDeepCleanDate   = "last_deep_clean_date"
	maxRowErrorsCollected  = 20
)

// Columns lists the recognised header in export order.
var Columns = []string{
	ColTrainID, ColRollingStock, ColSignalling, ColTelecom, ColJobCardStatus, ColCurrentMileage,
	ColStablingBay, ColPassengers, ColStationsCovered, ColTicketSales, ColBrandingHoursLeft, ColLastDeepCleanDate,
}

// Row is one parsed CSV line.
type Row struct {
	Line            int
	TrainID         string           `validate:"required,max=32,printascii"`
	RollingStock    string
	Signalling      string
	Telecom         string
	JobCardStatus   string           `validate:"max=32"`
	Mileage         numeric.Distance `validate:"gte=0"`
	StablingBay     string           `validate:"max=32"`
	Passengers      int              `validate:"gte=0"`
	StationsCovered int              `validate:"gte=0"`
	TicketSales     numeric.Money    `validate:"gte=0"`
	HoursLeft       int              `validate:"gte=0"`
	LastDeepClean   string
}

// RowError points at one rejected cell.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every rejected cell of an upload.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 0 {
		return "invalid csv"
	}
	first := e.Rows[0]
	msg := fmt.Sprintf("line %d: %s: %s", first.Line, first.Field, first.Message)
	if len(e.Rows) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Rows)-1)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

// Parser reads trainset CSV exports.
type Parser struct {
	validate *validator.Validate
}

// NewParser constructs a Parser.
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// Parse reads every data row of r. Rows without a train_id are skipped and
// counted. Malformed numbers reject the whole file.
func (p *Parser) Parse(r io.Reader) (rows []Row, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("%w: empty file", httpx.ErrValidation)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read header: %v", httpx.ErrValidation, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	if _, ok := index[ColTrainID]; !ok {
		return nil, 0, fmt.Errorf("%w: missing %s column", httpx.ErrValidation, ColTrainID)
	}

	verr := &ValidationError{}
	line := 1
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			return nil, 0, fmt.Errorf("%w: line %d: %v", httpx.ErrValidation, line, readErr)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if get(ColTrainID) == "" {
			skipped++
			continue
		}
		row, cellErrs := p.parseRow(line, get)
		if len(cellErrs) > 0 {
			if len(verr.Rows) < maxRowErrorsCollected {
				verr.Rows = append(verr.Rows, cellErrs...)
			}
			continue
		}
		rows = append(rows, row)
	}
	if len(verr.Rows) > 0 {
		return nil, skipped, verr
	}
	return rows, skipped, nil
}

func (p *Parser) parseRow(line int, get func(string) string) (Row, []RowError) {
	var errs []RowError
	fail := func(field, msg string) { errs = append(errs, RowError{Line: line, Field: field, Message: msg}) }

	row := Row{
		Line:          line,
		TrainID:       get(ColTrainID),
		RollingStock:  get(ColRollingStock),
		Signalling:    get(ColSignalling),
		Telecom:       get(ColTelecom),
		JobCardStatus: get(ColJobCardStatus),
		StablingBay:   get(ColStablingBay),
		LastDeepClean: get(ColLastDeepCleanDate),
	}

	if f, ok := number(get(ColCurrentMileage)); ok {
		row.Mileage = numeric.DistanceFromFloat(f)
	} else if d, err := numeric.ParseDistance(get(ColCurrentMileage)); err == nil {
		row.Mileage = d
	} else {
		fail(ColCurrentMileage, "not a number")
	}
	if f, ok := number(get(ColTicketSales)); ok {
		row.TicketSales = numeric.Money(math.Round(f))
	} else if m, err := numeric.ParseMoney(get(ColTicketSales)); err == nil {
		row.TicketSales = m
	} else {
		fail(ColTicketSales, "not an amount")
	}
	for _, c := range []struct {
		col string
		dst *int
	}{
		{ColPassengers, &row.Passengers},
		{ColStationsCovered, &row.StationsCovered},
		{ColBrandingHoursLeft, &row.HoursLeft},
	} {
		f, ok := number(get(c.col))
		if !ok {
			fail(c.col, "not a number")
			continue
		}
		if math.Abs(f) > math.MaxInt32 {
			fail(c.col, "out of range")
			continue
		}
		*c.dst = int(f)
	}
	if len(errs) > 0 {
		return Row{}, errs
	}

	if err := p.validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fail(fe.Field(), "failed "+fe.Tag())
			}
		} else {
			fail("row", err.Error())
		}
		return Row{}, errs
	}
	return row, nil
}

// number parses a plain decimal. Empty cells read as zero.
func number(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
