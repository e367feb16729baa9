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

// Package rabbitlite is a lightweight message broker modeled after AMQP 0-9-1.
//
// Publishers send messages to named exchanges. An exchange routes each message
// to zero or more queues through bindings according to its type:
//   - fanout delivers to every bound queue and ignores the routing key
//   - direct delivers to queues bound with a key equal to the routing key
//   - topic matches dot-separated routing keys against binding patterns,
//     where "*" matches exactly one word and "#" matches zero or more words
//
// Queues hold messages in FIFO order until a consumer acknowledges them.
// Unacknowledged messages return to the head of the queue when the consumer's
// channel or connection goes away, and are delivered again marked redelivered.
//
// Every virtual host keeps its own exchanges, queues and bindings. Durable
// topology and persistent messages survive broker restart through one of the
// storage backends: boltdb, buntdb or sqlite for metadata and a directory of
// message files for payloads.
//
// Clients speak a framed protocol over TCP (optionally TLS) or WebSocket. Each
// frame is a 4 byte big-endian length followed by a JSON document, see package frame.
//
// The broker binary lives in cmd/rabbitlite.
package rabbitlite
