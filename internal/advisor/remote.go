package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Remote calls an external model server for suggestions. The server is
// treated as opaque: it receives the Request as JSON and must answer with a
// Suggestion. Failures propagate to the caller unchanged; the pipeline has no
// retry or fallback by design.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote returns a Remote suggester targeting url.
func NewRemote(url string) *Remote {
	return &Remote{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Suggest implements Suggester.
func (r *Remote) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("encode suggestion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return Suggestion{}, fmt.Errorf("build suggestion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Suggestion{}, fmt.Errorf("call suggestion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Suggestion{}, fmt.Errorf("suggestion service error %d: %s", resp.StatusCode, body)
	}

	var s Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Suggestion{}, fmt.Errorf("decode suggestion response: %w", err)
	}

	return s, nil
}
