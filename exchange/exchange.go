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

// Package exchange keeps exchanges of one virtual host.
package exchange

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

// Type of exchange, defines routing algorithm
type Type uint8

// nolint: golint
const (
	Fanout Type = iota + 1
	Direct
	Topic
)

var typeNames = map[Type]string{
	Fanout: "fanout",
	Direct: "direct",
	Topic:  "topic",
}

// String ...
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}

	return "unknown"
}

// ParseType exchange type from its name, case insensitive
func ParseType(s string) (Type, error) {
	s = strings.ToLower(s)
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}

	return 0, errors.Wrapf(types.CodeCommandInvalid, "exchange type %q", s)
}

// Exchange is immutable after declare
type Exchange struct {
	Name       string
	Type       Type
	Durable    bool
	AutoDelete bool
	Args       types.Args
}

// Record persisted form of exchange
func (e *Exchange) Record() persistenceTypes.ExchangeRecord {
	return persistenceTypes.ExchangeRecord{
		Name:       e.Name,
		Type:       e.Type.String(),
		Durable:    e.Durable,
		AutoDelete: e.AutoDelete,
		Args:       e.Args.String(),
	}
}

// FromRecord restores exchange
func FromRecord(r *persistenceTypes.ExchangeRecord) (*Exchange, error) {
	t, err := ParseType(r.Type)
	if err != nil {
		return nil, err
	}

	return &Exchange{
		Name:       r.Name,
		Type:       t,
		Durable:    r.Durable,
		AutoDelete: r.AutoDelete,
		Args:       types.ParseArgs(r.Args),
	}, nil
}

// GetArgs returns args rendered as "k1=v1&"
func (e *Exchange) GetArgs() string {
	return e.Args.String()
}
