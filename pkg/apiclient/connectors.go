package apiclient

import (
	"context"
	"net/url"

	"github.com/marmos91/hostkit/pkg/api/handlers"
)

// Connectors lists the statistics of every active connector, sorted by
// name.
func (c *Client) Connectors(ctx context.Context) ([]handlers.ConnectorResponse, error) {
	var out []handlers.ConnectorResponse
	if err := c.get(ctx, "/connectors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Connector returns the statistics of one connector.
func (c *Client) Connector(ctx context.Context, name string) (*handlers.ConnectorResponse, error) {
	var out handlers.ConnectorResponse
	if err := c.get(ctx, "/connectors/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready returns nil when the server reports at least one active connector.
func (c *Client) Ready(ctx context.Context) error {
	return c.get(ctx, "/health/ready", nil)
}
