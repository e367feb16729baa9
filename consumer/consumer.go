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

// Package consumer tracks queue subscriptions and dispatches messages to them.
package consumer

import (
	"sort"

	"github.com/VolantMQ/rabbitlite/queue"
)

// Owner receives deliveries of its consumers
// Implemented by channel, must be comparable
type Owner interface {
	Deliver(d *Delivery) error
}

// Delivery message handed to consumer
type Delivery struct {
	ConsumerTag string
	Queue       string
	Item        *queue.Item
}

// Consumer subscription of one owner to one queue
type Consumer struct {
	tag      string
	queue    string
	owner    Owner
	autoAck  bool
	prefetch int

	// guarded by group lock, keyed by queue sequence
	unacked   map[uint64]*queue.Item
	cancelled bool
}

// Tag ...
func (c *Consumer) Tag() string {
	return c.tag
}

// Queue consumer is subscribed to
func (c *Consumer) Queue() string {
	return c.queue
}

// AutoAck ...
func (c *Consumer) AutoAck() bool {
	return c.autoAck
}

// idle consumer may take one more message
func (c *Consumer) idle() bool {
	return c.autoAck || c.prefetch <= 0 || len(c.unacked) < c.prefetch
}

// drain returns unacked items sorted by sequence
func (c *Consumer) drain() []*queue.Item {
	res := make([]*queue.Item, 0, len(c.unacked))
	for _, item := range c.unacked {
		res = append(res, item)
	}

	c.unacked = make(map[uint64]*queue.Item)

	sort.Slice(res, func(i, j int) bool {
		return res[i].Seq < res[j].Seq
	})

	return res
}

// take removes the oldest unacked delivery carrying message id
// ids are set by publishers and may repeat
func (c *Consumer) take(messageID string) *queue.Item {
	var res *queue.Item

	for _, item := range c.unacked {
		if item.Msg.ID() == messageID && (res == nil || item.Seq < res.Seq) {
			res = item
		}
	}

	if res != nil {
		delete(c.unacked, res.Seq)
	}

	return res
}
