// Package daemon talks to the external transfer daemon over its
// Transmission-compatible JSON RPC endpoint. Only the surface the core
// consumes is implemented: listing transfers, adding a magnet link and
// removing a transfer.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"syscall"
	"time"

	"harmonia/types"
)

const sessionHeader = "X-Transmission-Session-Id"

// ErrDaemonUnavailable wraps any transport-level failure reaching the
// daemon. Background pollers treat it as transient; only user-initiated
// actions surface it.
var ErrDaemonUnavailable = errors.New("transfer daemon unavailable")

// Client is the transfer daemon boundary consumed by the correlator and
// the download handlers.
type Client interface {
	ListTransfers(ctx context.Context) ([]types.Transfer, error)
	AddMagnet(ctx context.Context, magnet string) error
	RemoveTransfer(ctx context.Context, id int64, deleteData bool) error
}

// rpcClient implements Client against an HTTP endpoint with the 409
// session-id handshake the protocol requires.
type rpcClient struct {
	url        string
	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewClient creates a Client for the given RPC URL. Every call is bounded
// by the supplied timeout in addition to any context deadline.
func NewClient(url string, timeout time.Duration) Client {
	return &rpcClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type torrentGetArgs struct {
	Fields []string `json:"fields"`
}

type torrentGetResult struct {
	Torrents []struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		PercentDone  float64 `json:"percentDone"`
		TotalSize    int64   `json:"totalSize"`
		RateDownload int64   `json:"rateDownload"`
		RateUpload   int64   `json:"rateUpload"`
		ETA          int64   `json:"eta"`
		Status       int     `json:"status"`
	} `json:"torrents"`
}

// ListTransfers fetches the daemon's current transfer list.
func (c *rpcClient) ListTransfers(ctx context.Context) ([]types.Transfer, error) {
	args := torrentGetArgs{Fields: []string{
		"id", "name", "percentDone", "totalSize",
		"rateDownload", "rateUpload", "eta", "status",
	}}

	var result torrentGetResult
	if err := c.call(ctx, "torrent-get", args, &result); err != nil {
		return nil, err
	}

	transfers := make([]types.Transfer, 0, len(result.Torrents))
	for _, t := range result.Torrents {
		transfers = append(transfers, types.Transfer{
			ID:           t.ID,
			Name:         t.Name,
			PercentDone:  t.PercentDone,
			TotalSize:    t.TotalSize,
			RateDownload: t.RateDownload,
			RateUpload:   t.RateUpload,
			ETA:          t.ETA,
			Status:       types.TransferStatus(t.Status),
		})
	}
	return transfers, nil
}

// AddMagnet hands a magnet link to the daemon.
func (c *rpcClient) AddMagnet(ctx context.Context, magnet string) error {
	args := map[string]any{"filename": magnet}
	return c.call(ctx, "torrent-add", args, nil)
}

// RemoveTransfer removes a transfer, optionally deleting its data on disk.
func (c *rpcClient) RemoveTransfer(ctx context.Context, id int64, deleteData bool) error {
	args := map[string]any{
		"ids":               []int64{id},
		"delete-local-data": deleteData,
	}
	return c.call(ctx, "torrent-remove", args, nil)
}

// call executes one RPC round trip, retrying once on a 409 to pick up the
// session id the daemon hands out.
func (c *rpcClient) call(ctx context.Context, method string, args any, result any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}

	if resp.StatusCode == http.StatusConflict {
		c.mu.Lock()
		c.sessionID = resp.Header.Get(sessionHeader)
		c.mu.Unlock()
		resp.Body.Close()

		resp, err = c.post(ctx, body)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrDaemonUnavailable, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if envelope.Result != "success" {
		return fmt.Errorf("%s failed: %s", method, envelope.Result)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Arguments, result); err != nil {
			return fmt.Errorf("failed to decode %s arguments: %w", method, err)
		}
	}
	return nil
}

func (c *rpcClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	// Drain 409 bodies eagerly so the connection can be reused.
	if resp.StatusCode == http.StatusConflict {
		io.Copy(io.Discard, resp.Body)
	}
	return resp, nil
}

// IsConnectionRefused reports whether err looks like a daemon that is not
// running at all, as opposed to any other failure. User-facing actions use
// this to show a setup prompt instead of a generic error.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
