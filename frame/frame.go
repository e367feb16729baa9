// Copyright (c) 2014 The VolantMQ Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package frame defines protocol unit exchanged between client and broker.
package frame

import (
	"github.com/VolantMQ/rabbitlite/types"
)

// Client methods
const (
	ConnectionOpen  = "connection.open"
	ConnectionClose = "connection.close"
	ChannelOpen     = "channel.open"
	ChannelClose    = "channel.close"
	ExchangeDeclare = "exchange.declare"
	ExchangeDelete  = "exchange.delete"
	QueueDeclare    = "queue.declare"
	QueueDelete     = "queue.delete"
	QueueBind       = "queue.bind"
	QueueUnbind     = "queue.unbind"
	BasicPublish    = "basic.publish"
	BasicConsume    = "basic.consume"
	BasicCancel     = "basic.cancel"
	BasicAck        = "basic.ack"
)

// Server methods
// channel.close is also sent by server when channel is closed after internal error
const (
	Response     = "response"
	BasicDeliver = "basic.deliver"
)

// Frame decoded protocol unit
//easyjson:json
type Frame struct {
	Method       string     `json:"method"`
	Channel      uint16     `json:"channel,omitempty"`
	RequestID    uint64     `json:"request_id,omitempty"`
	VHost        string     `json:"vhost,omitempty"`
	Exchange     string     `json:"exchange,omitempty"`
	ExchangeType string     `json:"exchange_type,omitempty"`
	Queue        string     `json:"queue,omitempty"`
	BindingKey   string     `json:"binding_key,omitempty"`
	Durable      bool       `json:"durable,omitempty"`
	Exclusive    bool       `json:"exclusive,omitempty"`
	AutoDelete   bool       `json:"auto_delete,omitempty"`
	AutoAck      bool       `json:"auto_ack,omitempty"`
	IfUnused     bool       `json:"if_unused,omitempty"`
	Args         types.Args `json:"args,omitempty"`
	ConsumerTag  string     `json:"consumer_tag,omitempty"`
	Prefetch     int        `json:"prefetch,omitempty"`
	MessageID    string     `json:"message_id,omitempty"`
	DeliveryMode uint8      `json:"delivery_mode,omitempty"`
	RoutingKey   string     `json:"routing_key,omitempty"`
	Body         []byte     `json:"body,omitempty"`
	MessageCount int        `json:"message_count,omitempty"`
	OK           bool       `json:"ok,omitempty"`
	Code         uint16     `json:"code,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Redelivered  bool       `json:"redelivered,omitempty"`
}

// Reply to request, carries request id and channel of request
func (f *Frame) Reply() *Frame {
	return &Frame{
		Method:    Response,
		Channel:   f.Channel,
		RequestID: f.RequestID,
		OK:        true,
		Code:      types.CodeSuccess.Value(),
	}
}

// Fail turns response into failed one
// Reason code is taken from error, unknown errors are reported as internal
func (f *Frame) Fail(err error) *Frame {
	f.OK = false
	f.Code = types.CodeOf(err).Value()
	f.Reason = err.Error()

	return f
}

// Err returns error carried by failed response
func (f *Frame) Err() error {
	if f.OK {
		return nil
	}

	return &RemoteError{Code: types.ReasonCode(f.Code), Reason: f.Reason}
}

// RemoteError failure reported by peer
type RemoteError struct {
	Code   types.ReasonCode
	Reason string
}

func (e *RemoteError) Error() string {
	return e.Reason
}

// Cause allows errors.Cause to classify remote error by its code
func (e *RemoteError) Cause() error {
	return e.Code
}
