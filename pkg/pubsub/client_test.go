package pubsub

import (
	"context"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucarts/marketplace-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	c := &Client{project: "anucarts-dev"}
	for in, want := range map[string]string{
		"orders":                       "projects/anucarts-dev/topics/orders",
		" orders ":                     "projects/anucarts-dev/topics/orders",
		"projects/other/topics/orders": "projects/other/topics/orders",
		"  ":                           "",
	} {
		assert.Equal(t, want, c.resourceName(in), "topic %q", in)
	}
	assert.Empty(t, (&Client{}).resourceName("orders"))
}

func TestNewClientValidatesInput(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, []string{"orders"}, nil)
	require.Error(t, err)
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, nil, nil)
	require.Error(t, err)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errClosed)
	assert.ErrorIs(t, c.Publish(context.Background(), "orders", &gcppubsub.Message{}), errClosed)
	assert.NoError(t, c.Close())
}
