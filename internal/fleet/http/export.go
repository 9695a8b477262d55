package fleethttp

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kmrl/opsboard/internal/fleet"
)

// ReportColumns is the header of the trainset CSV report.
var ReportColumns = []string{"train_id", "fitness", "status", "mileage", "bay", "passengers"}

// WriteTrainsetCSV writes the trainset report. Mileage is written as a plain
// integer so spreadsheets treat it as a number.
func WriteTrainsetCSV(w io.Writer, trainsets []fleet.Trainset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ReportColumns); err != nil {
		return err
	}
	for _, t := range trainsets {
		if err := writer.Write([]string{
			t.TrainID,
			t.Fitness,
			t.Status,
			strconv.FormatInt(int64(t.Mileage), 10),
			t.Bay,
			strconv.Itoa(t.Passengers),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTable writes pre-formatted rows, header first.
func WriteTable(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Trainset Report</title>
<style>body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;}th,td{border:1px solid #ddd;padding:6px;text-align:left;}th{background:#f5f5f5;}td.num{text-align:right;}</style>
</head><body>
<h1>Trainset Report</h1>
<p>Generated {{.Generated}}</p>
<table><thead><tr><th>Train ID</th><th>Name</th><th>Fitness</th><th>Status</th><th>Mileage (km)</th><th>Bay</th><th>Passengers</th><th>Open Jobs</th></tr></thead><tbody>
{{range .Trainsets}}<tr><td>{{.TrainID}}</td><td>{{.Name}}</td><td>{{.Fitness}}</td><td>{{.Status}}</td><td class="num">{{.Mileage.Format}}</td><td>{{.Bay}}</td><td class="num">{{.Passengers}}</td><td class="num">{{.PendingJobs}}</td></tr>
{{end}}</tbody></table>
</body></html>`))

// ReportHTML renders the trainset report page sent to the PDF converter.
func ReportHTML(trainsets []fleet.Trainset, generated time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Generated string
		Trainsets []fleet.Trainset
	}{generated.UTC().Format("02 Jan 2006 15:04 MST"), trainsets})
	if err != nil {
		return nil, fmt.Errorf("fleethttp: render report: %w", err)
	}
	return buf.Bytes(), nil
}

// GotenbergPDF converts HTML through a Gotenberg Chromium endpoint.
type GotenbergPDF struct {
	Endpoint string
	Client   *http.Client
}

// RenderHTML posts html as index.html and returns the PDF bytes.
func (p *GotenbergPDF) RenderHTML(ctx context.Context, filename string, html []byte) ([]byte, error) {
	endpoint := strings.TrimRight(p.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("fleethttp: gotenberg endpoint required")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Gotenberg-Output-Filename", strings.TrimSuffix(filename, ".pdf"))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fleethttp: gotenberg: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fleethttp: gotenberg response %d: %s", resp.StatusCode, string(data))
	}
	return io.ReadAll(resp.Body)
}
