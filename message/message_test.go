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

package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeneratesID(t *testing.T) {
	m1 := New(Properties{RoutingKey: "news.music"}, []byte("hello"))
	m2 := New(Properties{RoutingKey: "news.music"}, []byte("hello"))

	require.NotEmpty(t, m1.ID())
	require.NotEqual(t, m1.ID(), m2.ID())
	require.Equal(t, "news.music", m1.RoutingKey())
}

func TestNewKeepsID(t *testing.T) {
	m := New(Properties{ID: "msg-1", DeliveryMode: Durable}, nil)

	require.Equal(t, "msg-1", m.ID())
	require.True(t, m.Durable())
	require.Equal(t, 0, m.Size())
}

func TestDeliveryModeFallback(t *testing.T) {
	m := New(Properties{DeliveryMode: 7}, []byte("x"))
	require.Equal(t, Transient, m.DeliveryMode())
	require.False(t, m.Durable())
	require.Equal(t, "transient", m.DeliveryMode().String())
}

func TestBodyIsCopied(t *testing.T) {
	body := []byte("abc")
	m := New(Properties{}, body)
	body[0] = 'z'

	require.Equal(t, []byte("abc"), m.Body())
}
