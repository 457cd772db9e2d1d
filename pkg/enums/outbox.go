package enums

import "slices"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = []OutboxAggregateType{AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

// OutboxEventType is the event_type column and the event_type attribute of
// the published message.
type OutboxEventType string

const (
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderFanoutFailed  OutboxEventType = "order_fanout_failed"
)

var eventTypes = []OutboxEventType{EventOrderPlaced, EventOrderStatusChanged, EventOrderFanoutFailed}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

// DeadLetterReason records why the relay gave up on an event.
type DeadLetterReason string

const (
	// DeadLetterExhausted: every allowed publish attempt failed.
	DeadLetterExhausted DeadLetterReason = "max_attempts"
	// DeadLetterPermanent: the event can never be published as stored.
	DeadLetterPermanent DeadLetterReason = "non_retryable"
)
