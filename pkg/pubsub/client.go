// Package pubsub owns the process-wide Pub/Sub connection used by the outbox
// relay.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/gcp"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

var errClosed = errors.New("pubsub: client not initialized")

// Client publishes to a fixed set of topics, keeping one ordered publisher
// per topic for the life of the process.
type Client struct {
	api     *gcppubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient connects and fails when any of topics is missing.
func NewClient(ctx context.Context, cfg config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	if project == "" {
		return nil, errors.New("pubsub: gcp project id is required")
	}
	if len(topics) == 0 {
		return nil, errors.New("pubsub: at least one topic is required")
	}
	api, err := gcppubsub.NewClient(ctx, project, gcp.ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{
		api:        api,
		project:    project,
		topics:     topics,
		publishers: make(map[string]*gcppubsub.Publisher),
	}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub.connected")
	}
	return c, nil
}

// Ping checks that every configured topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errClosed
	}
	for _, topic := range c.topics {
		name := c.resourceName(topic)
		_, err := c.api.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub: topic %s does not exist", name)
		case err != nil:
			return fmt.Errorf("pubsub: get topic %s: %w", name, err)
		}
	}
	return nil
}

// Publish sends msg and waits for the server ack. After a failure the
// message's ordering key is resumed so the caller can retry it later.
func (c *Client) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := c.publisher(topic)
	if pub == nil {
		return errClosed
	}
	if _, err := pub.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

func (c *Client) publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.api == nil {
		return nil
	}
	name := c.resourceName(topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[name]
	if !ok {
		pub = c.api.Publisher(name)
		pub.EnableMessageOrdering = true
		c.publishers[name] = pub
	}
	return pub
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.api.Close()
}

// resourceName accepts a bare topic id or a full projects/.../topics/... name.
func (c *Client) resourceName(topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/"):
		return topic
	case c.project == "":
		return ""
	}
	return "projects/" + c.project + "/topics/" + topic
}
