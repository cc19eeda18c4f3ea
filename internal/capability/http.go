package capability

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/kode4food/cadence/internal/client"
	"github.com/kode4food/cadence/pkg/api"
)

// HTTPCapability POSTs its arguments to a remote endpoint. When a result
// path is configured, only that portion of the response's result is kept
type HTTPCapability struct {
	client     client.Client
	config     *api.HTTPConfig
	name       string
	resultPath string
}

const resultField = "result"

var _ Capability = (*HTTPCapability)(nil)

// NewHTTPCapability creates an HTTP capability using the provided client
func NewHTTPCapability(
	cl client.Client, name string, cfg *api.HTTPConfig, resultPath string,
) *HTTPCapability {
	return &HTTPCapability{
		client:     cl,
		config:     cfg,
		name:       name,
		resultPath: resultPath,
	}
}

func (c *HTTPCapability) Invoke(
	ctx context.Context, args api.Args,
) (any, error) {
	res, err := c.client.Invoke(ctx, c.name, c.config, args, MetadataFrom(ctx))
	if err != nil {
		return nil, err
	}
	if c.resultPath == "" {
		return res.Result, nil
	}
	val := gjson.GetBytes(res.Body, resultField+"."+c.resultPath)
	if !val.Exists() {
		return nil, nil
	}
	return val.Value(), nil
}
