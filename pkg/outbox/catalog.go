package outbox

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/outbox/payloads"
)

// Route says where an event type is published and what its data decodes to.
type Route struct {
	Topic     string
	Aggregate enums.OutboxAggregateType
	newData   func() any
}

// Resolved is a stored row that passed validation and is ready to publish.
type Resolved struct {
	Route    Route
	Envelope Envelope
	Data     any
}

// Catalog is the closed set of publishable events.
type Catalog struct {
	routes map[enums.OutboxEventType]Route
}

func NewCatalog(cfg config.PubSubConfig) (*Catalog, error) {
	orders := strings.TrimSpace(cfg.OrdersTopic)
	if orders == "" {
		return nil, errors.New("outbox: orders topic is required")
	}
	return &Catalog{routes: map[enums.OutboxEventType]Route{
		enums.EventOrderPlaced: {
			Topic: orders, Aggregate: enums.AggregateOrder,
			newData: func() any { return &payloads.OrderPlacedEvent{} },
		},
		enums.EventOrderStatusChanged: {
			Topic: orders, Aggregate: enums.AggregateOrder,
			newData: func() any { return &payloads.OrderStatusChangedEvent{} },
		},
		enums.EventOrderFanoutFailed: {
			Topic: orders, Aggregate: enums.AggregateOrder,
			newData: func() any { return &payloads.OrderFanoutFailedEvent{} },
		},
	}}, nil
}

// Topics returns the distinct topics in a stable order.
func (c *Catalog) Topics() []string {
	set := make(map[string]struct{}, len(c.routes))
	for _, r := range c.routes {
		set[r.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks a stored row against its route and decodes the typed data.
// Every error it returns is permanent: the row will never publish as stored.
func (c *Catalog) Resolve(row models.OutboxEvent) (Resolved, error) {
	route, ok := c.routes[row.EventType]
	if !ok {
		return Resolved{}, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if row.AggregateType != route.Aggregate {
		return Resolved{}, Permanent(fmt.Errorf("%s belongs to aggregate %q, row says %q", row.EventType, route.Aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return Resolved{}, Permanent(errors.New("row has no aggregate id"))
	}
	data := route.newData()
	env, err := DecodeEnvelope(row.Payload, data)
	if err != nil {
		return Resolved{}, Permanent(err)
	}
	if d := bytes.TrimSpace(env.Data); len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return Resolved{}, Permanent(fmt.Errorf("%s has no data", row.EventType))
	}
	return Resolved{Route: route, Envelope: env, Data: data}, nil
}
