package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kode4food/cadence"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type (
	// Client invokes capabilities hosted behind an HTTP endpoint
	Client interface {
		Invoke(
			context.Context, string, *api.HTTPConfig, api.Args, api.Metadata,
		) (*Response, error)
	}

	// Response is a successful capability response. Body retains the raw
	// JSON so that callers can extract nested values without re-encoding
	Response struct {
		Result any
		Body   []byte
	}

	HTTPClient struct {
		httpClient *http.Client
		timeout    time.Duration
	}
)

var (
	ErrCapabilityUnsuccessful = errors.New(
		"capability returned success=false",
	)
	ErrHTTPError    = errors.New("capability returned HTTP error")
	ErrNoHTTPConfig = errors.New("capability has no HTTP configuration")
)

var _ Client = (*HTTPClient)(nil)

var userAgent = fmt.Sprintf("Cadence-Engine/%s", cadence.Version)

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

func (c *HTTPClient) Invoke(
	ctx context.Context, name string, cfg *api.HTTPConfig, args api.Args,
	meta api.Metadata,
) (*Response, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoHTTPConfig, name)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(
			ctx, time.Duration(cfg.Timeout)*time.Millisecond,
		)
		defer cancel()
	}

	request := api.CapabilityRequest{
		Arguments: args,
		Metadata:  meta,
	}

	body, err := json.Marshal(request)
	if err != nil {
		slog.Error("Failed to marshal capability request",
			log.Capability(name),
			log.Error(err))
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, cfg.Endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			log.Capability(name),
			log.Error(err))
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("HTTP request failed",
			log.Capability(name),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read response body",
			log.Capability(name),
			log.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("HTTP error",
			log.Capability(name),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	var response api.CapabilityResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		slog.Error("Failed to unmarshal response",
			log.Capability(name),
			log.Error(err))
		return nil, err
	}

	if !response.Success {
		if response.Error == "" {
			slog.Error("Capability unsuccessful",
				log.Capability(name))
			return nil, ErrCapabilityUnsuccessful
		}
		slog.Error("Capability failed",
			log.Capability(name),
			log.ErrorString(response.Error))
		return nil, fmt.Errorf("%w: %s",
			ErrCapabilityUnsuccessful, response.Error)
	}

	return &Response{
		Result: response.Result,
		Body:   respBody,
	}, nil
}
