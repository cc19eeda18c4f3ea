package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/internal/client"
	"github.com/kode4food/cadence/pkg/api"
)

func respondWith(res *api.CapabilityResponse) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(res)
		},
	))
}

func invoke(
	ctx context.Context, cl *client.HTTPClient, endpoint string,
) (*client.Response, error) {
	return cl.Invoke(ctx, "test-cap",
		&api.HTTPConfig{Endpoint: endpoint}, api.Args{}, api.Metadata{},
	)
}

func TestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Contains(t, r.Header.Get("User-Agent"), "Cadence-Engine/")

			var req api.CapabilityRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-input", req.Arguments["input"])
			assert.Equal(t, "run-1", req.Metadata[api.MetaRunID])

			_ = json.NewEncoder(w).Encode(api.CapabilityResponse{
				Success: true,
				Result:  map[string]any{"value": "test-output"},
			})
		},
	))
	defer server.Close()

	cl := client.NewHTTPClient(5 * time.Second)
	res, err := cl.Invoke(context.Background(), "test-cap",
		&api.HTTPConfig{Endpoint: server.URL},
		api.Args{"input": "test-input"},
		api.Metadata{api.MetaRunID: "run-1"},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "test-output"}, res.Result)
	assert.Contains(t, string(res.Body), "test-output")
}

func TestNoHTTPConfig(t *testing.T) {
	cl := client.NewHTTPClient(5 * time.Second)

	_, err := cl.Invoke(
		context.Background(), "test-cap", nil, api.Args{}, api.Metadata{},
	)
	assert.ErrorIs(t, err, client.ErrNoHTTPConfig)

	_, err = invoke(context.Background(), cl, "")
	assert.ErrorIs(t, err, client.ErrNoHTTPConfig)
}

func TestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
		},
	))
	defer server.Close()

	_, err := invoke(
		context.Background(), client.NewHTTPClient(5*time.Second), server.URL,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrHTTPError)
	assert.Equal(t,
		"capability returned HTTP error: HTTP 500", err.Error(),
	)
}

func TestSuccessFalse(t *testing.T) {
	server := respondWith(&api.CapabilityResponse{Success: false})
	defer server.Close()

	_, err := invoke(
		context.Background(), client.NewHTTPClient(5*time.Second), server.URL,
	)
	assert.ErrorIs(t, err, client.ErrCapabilityUnsuccessful)
}

func TestSuccessFalseWithError(t *testing.T) {
	server := respondWith(&api.CapabilityResponse{
		Error: "custom error message",
	})
	defer server.Close()

	_, err := invoke(
		context.Background(), client.NewHTTPClient(5*time.Second), server.URL,
	)
	assert.ErrorIs(t, err, client.ErrCapabilityUnsuccessful)
	assert.Contains(t, err.Error(), "custom error message")
}

func TestInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("invalid json"))
		},
	))
	defer server.Close()

	_, err := invoke(
		context.Background(), client.NewHTTPClient(5*time.Second), server.URL,
	)
	assert.Error(t, err)
}

func TestTimeouts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(api.CapabilityResponse{
				Success: true,
			})
		},
	))
	defer server.Close()

	t.Run("client", func(t *testing.T) {
		cl := client.NewHTTPClient(50 * time.Millisecond)
		_, err := invoke(context.Background(), cl, server.URL)
		assert.Error(t, err)
	})

	t.Run("per_capability", func(t *testing.T) {
		cl := client.NewHTTPClient(5 * time.Second)
		_, err := cl.Invoke(context.Background(), "test-cap",
			&api.HTTPConfig{Endpoint: server.URL, Timeout: 50},
			api.Args{}, api.Metadata{},
		)
		assert.Error(t, err)
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := invoke(ctx, client.NewHTTPClient(5*time.Second), server.URL)
		assert.Error(t, err)
	})
}

func TestEmptyResult(t *testing.T) {
	server := respondWith(&api.CapabilityResponse{Success: true})
	defer server.Close()

	res, err := invoke(
		context.Background(), client.NewHTTPClient(5*time.Second), server.URL,
	)
	require.NoError(t, err)
	assert.Nil(t, res.Result)
}
