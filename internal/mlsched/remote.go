package mlsched

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kmrl/opsboard/internal/platform/httpx"
)

const remoteTimeout = 5 * time.Minute

// RemoteEngine delegates training and scheduling to an external ML service
// speaking the /ml/schedule API.
type RemoteEngine struct {
	endpoint string
	client   *http.Client
}

// NewRemoteEngine targets the service at endpoint. A nil client gets a
// client with a generous timeout, since training is slow.
func NewRemoteEngine(endpoint string, client *http.Client) *RemoteEngine {
	if client == nil {
		client = &http.Client{Timeout: remoteTimeout}
	}
	return &RemoteEngine{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

func (e *RemoteEngine) Name() string { return "remote" }

type remoteReply struct {
	Status   string       `json:"status"`
	Message  string       `json:"message"`
	Date     string       `json:"date"`
	Schedule []Assignment `json:"schedule"`
}

// Train asks the service to retrain its model.
func (e *RemoteEngine) Train(ctx context.Context) error {
	_, err := e.post(ctx, "/ml/schedule/train/", struct{}{})
	return err
}

// Generate asks the service for the schedule of date.
func (e *RemoteEngine) Generate(ctx context.Context, date string) ([]Assignment, error) {
	reply, err := e.post(ctx, "/ml/schedule/generate/", map[string]string{"date": date})
	if err != nil {
		return nil, err
	}
	if reply.Schedule == nil {
		return []Assignment{}, nil
	}
	return reply.Schedule, nil
}

func (e *RemoteEngine) post(ctx context.Context, path string, body any) (remoteReply, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return remoteReply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return remoteReply{}, fmt.Errorf("mlsched: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return remoteReply{}, fmt.Errorf("mlsched: %s: %w: %v", path, httpx.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return remoteReply{}, fmt.Errorf("mlsched: %s: %w: %v", path, httpx.ErrUpstream, err)
	}
	var reply remoteReply
	decodeErr := json.Unmarshal(raw, &reply)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := reply.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw[:min(len(raw), 256)]))
		}
		return remoteReply{}, fmt.Errorf("mlsched: %s: %w: status %d: %s", path, httpx.ErrUpstream, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return remoteReply{}, fmt.Errorf("mlsched: %s: %w: decode: %v", path, httpx.ErrUpstream, decodeErr)
	}
	if reply.Status == "error" {
		return remoteReply{}, fmt.Errorf("mlsched: %s: %w: %s", path, httpx.ErrUpstream, reply.Message)
	}
	return reply, nil
}
