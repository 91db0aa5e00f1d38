package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"drip/internal/catalog"
	"drip/internal/export"
)

// Client talks to a running appliance's control API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient targets bind, rewriting wildcard hosts to loopback.
func NewClient(bind, token string) (*Client, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return nil, fmt.Errorf("api bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return &Client{
		base:  "http://" + net.JoinHostPort(host, port),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// APIError is a non-2xx answer from the appliance.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("appliance returned %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var failure response
		if json.Unmarshal(data, &failure) == nil && failure.Message != "" {
			return &APIError{Code: resp.StatusCode, Message: failure.Message}
		}
		return &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Ping reports whether the API answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil, nil)
}

// Zoom sets the lens to multiplier and returns the confirmation message.
func (c *Client) Zoom(ctx context.Context, multiplier float64) (string, error) {
	var resp zoomResponse
	query := url.Values{"multiplier": {strconv.FormatFloat(multiplier, 'f', -1, 64)}}
	if err := c.do(ctx, http.MethodGet, "/zoom", query, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ZoomStep moves one step in direction ("in" or "out").
func (c *Client) ZoomStep(ctx context.Context, direction string) (string, error) {
	var resp zoomResponse
	if err := c.do(ctx, http.MethodPost, "/zoom/"+direction+"/press", nil, nil, &resp); err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, "/zoom/release", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SetICR switches the IR-cut filter.
func (c *Client) SetICR(ctx context.Context, enabled bool) (string, error) {
	var resp icrResponse
	query := url.Values{"enable": {strconv.FormatBool(enabled)}}
	if err := c.do(ctx, http.MethodGet, "/icr/toggle", query, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SetIRCorrection switches IR focus correction.
func (c *Client) SetIRCorrection(ctx context.Context, enabled bool) (string, error) {
	var resp irCorrectionResponse
	query := url.Values{"enable": {strconv.FormatBool(enabled)}}
	if err := c.do(ctx, http.MethodGet, "/ir_correction", query, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Status fetches the appliance snapshot.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, nil, &resp)
	return resp, err
}

// StartRecording starts a capture and returns its session ID.
func (c *Client) StartRecording(ctx context.Context) (string, error) {
	var resp recordingResponse
	err := c.do(ctx, http.MethodPost, "/recording/start", nil, nil, &resp)
	return resp.SessionID, err
}

// StopRecording stops the capture and hands it to post-processing.
func (c *Client) StopRecording(ctx context.Context) (string, error) {
	var resp recordingResponse
	err := c.do(ctx, http.MethodPost, "/recording/stop", nil, nil, &resp)
	return resp.Message, err
}

// Export runs an export batch on the appliance.
func (c *Client) Export(ctx context.Context, files []string, dest string, keep *bool) (export.Result, error) {
	var resp exportResponse
	err := c.do(ctx, http.MethodPost, "/export", nil, exportRequest{Files: files, Dest: dest, KeepOriginals: keep}, &resp)
	return resp.Result, err
}

// Jobs lists catalogued transcode jobs.
func (c *Client) Jobs(ctx context.Context, limit int) ([]catalog.Job, error) {
	var resp jobsResponse
	err := c.do(ctx, http.MethodGet, "/jobs", url.Values{"limit": {strconv.Itoa(limit)}}, nil, &resp)
	return resp.Jobs, err
}

// Recordings lists the finished recordings the appliance would export.
func (c *Client) Recordings(ctx context.Context) ([]export.Recording, error) {
	var resp recordingsResponse
	err := c.do(ctx, http.MethodGet, "/recordings", nil, nil, &resp)
	return resp.Recordings, err
}

// Exports lists catalogued export outcomes.
func (c *Client) Exports(ctx context.Context, limit int) ([]catalog.ExportRecord, error) {
	var resp exportsResponse
	err := c.do(ctx, http.MethodGet, "/exports", url.Values{"limit": {strconv.Itoa(limit)}}, nil, &resp)
	return resp.Exports, err
}

// IsUnavailable reports whether err means the appliance could not be reached.
func IsUnavailable(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.As(err, &netErr)
}
