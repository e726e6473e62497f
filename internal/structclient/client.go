package structclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dgallion1/structlay/internal/structure"
)

// Client communicates with the structure-metadata HTTP API of the
// extraction service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PageStructure retrieves the layout metadata for one page. A 404 means the
// page has no extractable structure and is reported as (nil, nil); callers
// render nothing for such pages.
func (c *Client) PageStructure(ctx context.Context, docID string, page int) (*structure.PageStructure, error) {
	u := fmt.Sprintf("%s/documents/%s/pages/%d/structure", c.baseURL, url.PathEscape(docID), page)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get structure: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get structure %s page %d: status %d: %s", docID, page, resp.StatusCode, string(respBody))
	}

	var ps structure.PageStructure
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode structure: %w", err)
	}
	if ps.DocID == "" {
		ps.DocID = docID
	}
	if ps.Page == 0 {
		ps.Page = page
	}
	if ps.Stats == (structure.Stats{}) && len(ps.Elements) > 0 {
		ps.Stats = structure.ComputeStats(ps.Elements)
	}
	return &ps, nil
}

// DocumentChunks retrieves the markdown chunks of a document for the text
// pane.
func (c *Client) DocumentChunks(ctx context.Context, docID string) ([]structure.Chunk, error) {
	u := fmt.Sprintf("%s/documents/%s/chunks", c.baseURL, url.PathEscape(docID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get chunks %s: status %d: %s", docID, resp.StatusCode, string(respBody))
	}

	var result struct {
		Chunks []structure.Chunk `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return result.Chunks, nil
}

// RetryableError indicates a transient upstream failure that the host may
// retry by re-requesting the page.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases any resources (currently a no-op).
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
