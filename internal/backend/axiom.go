package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxErrorBodyBytes caps how much of a failure response is kept for the
// error message.
const maxErrorBodyBytes = 2048

// AxiomClient executes APL queries and dataset trims against the Axiom
// HTTP API. One request/response per call; timeouts are the caller's
// responsibility via ctx.
type AxiomClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewAxiomClient creates a client for the given API base URL and token.
func NewAxiomClient(baseURL, token string, logger *zap.Logger) *AxiomClient {
	return &AxiomClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}
}

type aplRequest struct {
	APL       string `json:"apl"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type aplResponse struct {
	Matches []aplMatch `json:"matches"`
}

type aplMatch struct {
	Time string         `json:"_time"`
	Data map[string]any `json:"data"`
}

type trimRequest struct {
	MaxDuration string `json:"maxDuration"`
}

// Query runs one APL query over the given time window and returns the
// matching records.
func (c *AxiomClient) Query(ctx context.Context, apl string, start, end time.Time) ([]Record, error) {
	body := aplRequest{
		APL:       apl,
		StartTime: start.Format(time.RFC3339),
		EndTime:   end.Format(time.RFC3339),
	}

	var resp aplResponse
	if err := c.post(ctx, "/v1/datasets/_apl?format=legacy", body, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		rec := Record{}
		for k, v := range m.Data {
			rec[k] = v
		}
		if m.Time != "" {
			rec["_time"] = m.Time
		}
		records = append(records, rec)
	}

	c.logger.Debug("axiom query executed",
		zap.String("apl", apl),
		zap.Int("matches", len(records)),
	)
	return records, nil
}

// Trim deletes all events in the dataset older than maxDuration. This is
// the single mutating log-backend call.
func (c *AxiomClient) Trim(ctx context.Context, dataset, maxDuration string) error {
	path := fmt.Sprintf("/v1/datasets/%s/trim", dataset)
	if err := c.post(ctx, path, trimRequest{MaxDuration: maxDuration}, nil); err != nil {
		return err
	}
	c.logger.Info("axiom dataset trimmed",
		zap.String("dataset", dataset),
		zap.String("max_duration", maxDuration),
	)
	return nil
}

func (c *AxiomClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Backend: "axiom", Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Backend: "axiom", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Backend: "axiom", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &Error{Backend: "axiom", Status: resp.StatusCode, Message: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Backend: "axiom", Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
