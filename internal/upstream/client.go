// Package upstream reads the dashboard collections from a remote deployment
// of the operations API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

const (
	defaultTimeout = 15 * time.Second
	maxBody        = 8 << 20
)

// Client fetches collections over HTTP. It satisfies fleet.Store and
// fleet.OverviewSource.
type Client struct {
	base   string
	client *http.Client
}

// New targets the deployment rooted at base, e.g. "http://ops.internal:8000".
func New(base string, client *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base url %q", base)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: u.String(), client: client}, nil
}

// get decodes the JSON document at path into dest. Transport failures and
// non-2xx answers wrap httpx.ErrUpstream, except 404 which maps to
// fleet.ErrNotFound.
func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("upstream: GET %s: %w: %v", path, httpx.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("upstream: GET %s: %w", path, fleet.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream: GET %s: %w: status %d: %s", path, httpx.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBody))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("upstream: GET %s: %w: decode: %v", path, httpx.ErrUpstream, err)
	}
	return nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func predictionPath(collection string) string { return "/api/prediction/" + collection + "/" }

func (c *Client) Fitness(ctx context.Context) ([]fleet.FitnessCertificate, error) {
	return list[fleet.FitnessCertificate](ctx, c, predictionPath(fleet.CollectionFitness))
}

func (c *Client) JobCards(ctx context.Context) ([]fleet.JobCard, error) {
	return list[fleet.JobCard](ctx, c, predictionPath(fleet.CollectionJobCards))
}

func (c *Client) Branding(ctx context.Context) ([]fleet.BrandingCampaign, error) {
	return list[fleet.BrandingCampaign](ctx, c, predictionPath(fleet.CollectionBranding))
}

func (c *Client) Mileage(ctx context.Context) ([]fleet.MileageRecord, error) {
	return list[fleet.MileageRecord](ctx, c, predictionPath(fleet.CollectionMileage))
}

func (c *Client) Cleaning(ctx context.Context) ([]fleet.CleaningSlot, error) {
	return list[fleet.CleaningSlot](ctx, c, predictionPath(fleet.CollectionCleaning))
}

func (c *Client) Stabling(ctx context.Context) ([]fleet.StablingBay, error) {
	return list[fleet.StablingBay](ctx, c, predictionPath(fleet.CollectionStabling))
}

func (c *Client) Trainsets(ctx context.Context) ([]fleet.Trainset, error) {
	return list[fleet.Trainset](ctx, c, "/api/trainsets/")
}

// Trainset fetches one trainset, or fleet.ErrNotFound.
func (c *Client) Trainset(ctx context.Context, id string) (fleet.Trainset, error) {
	var t fleet.Trainset
	if err := c.get(ctx, "/api/trainsets/"+url.PathEscape(id)+"/", &t); err != nil {
		return fleet.Trainset{}, err
	}
	return t, nil
}

// Overview fetches the headline figures.
func (c *Client) Overview(ctx context.Context) (fleet.Overview, error) {
	var o fleet.Overview
	if err := c.get(ctx, "/api/stats/overview/", &o); err != nil {
		return fleet.Overview{}, err
	}
	return o, nil
}
