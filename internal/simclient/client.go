package simclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/playback"
)

// Path of the simulation endpoint on the server.
const Path = "/run_simulation"

// Form field names of a simulation request.
const (
	FieldSpeed    = "sim_speed"
	FieldDuration = "sim_duration"
)

var ErrStatus = errors.New("simclient: unexpected status")

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simclient: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Client requests result bundles from the simulation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch posts the parameters as a form and decodes the bundle. Series
// required by views are checked by the caller.
func (c *Client) Fetch(ctx context.Context, p playback.Params) (*bundle.Bundle, error) {
	form := url.Values{}
	form.Set(FieldSpeed, strconv.FormatFloat(p.Speed, 'g', -1, 64))
	form.Set(FieldDuration, strconv.FormatFloat(p.Duration, 'g', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build simulation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simulation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	b, err := bundle.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode simulation response: %w", err)
	}
	return b, nil
}
