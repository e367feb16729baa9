// Package message describes units of data published to exchanges and stored in queues.
package message

import (
	"github.com/google/uuid"
)

// DeliveryMode tells broker if message must survive restart
type DeliveryMode uint8

// nolint: golint
const (
	// Transient message lives in memory only
	Transient DeliveryMode = 1
	// Durable message is persisted when routed to a durable queue
	Durable DeliveryMode = 2
)

// String ...
func (m DeliveryMode) String() string {
	switch m {
	case Durable:
		return "durable"
	default:
		return "transient"
	}
}

// Properties attached to every published message
type Properties struct {
	ID           string
	DeliveryMode DeliveryMode
	RoutingKey   string
}

// Message immutable once published
type Message struct {
	props Properties
	body  []byte
}

// New allocate message
// Empty ID is replaced with generated one and unknown delivery mode falls back to Transient
func New(props Properties, body []byte) *Message {
	if props.ID == "" {
		props.ID = NewID()
	}

	if props.DeliveryMode != Durable {
		props.DeliveryMode = Transient
	}

	b := make([]byte, len(body))
	copy(b, body)

	return &Message{
		props: props,
		body:  b,
	}
}

// NewID generates unique message id
func NewID() string {
	return uuid.New().String()
}

// ID of message
func (m *Message) ID() string {
	return m.props.ID
}

// RoutingKey ...
func (m *Message) RoutingKey() string {
	return m.props.RoutingKey
}

// DeliveryMode ...
func (m *Message) DeliveryMode() DeliveryMode {
	return m.props.DeliveryMode
}

// Durable true if message requested to be persisted
func (m *Message) Durable() bool {
	return m.props.DeliveryMode == Durable
}

// Properties returns copy of message properties
func (m *Message) Properties() Properties {
	return m.props
}

// Body must not be modified by caller
func (m *Message) Body() []byte {
	return m.body
}

// Size of message body
func (m *Message) Size() int {
	return len(m.body)
}
