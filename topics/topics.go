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

// Package topics implements dot-separated routing key matching used by topic exchanges.
package topics

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/types"
)

// nolint: golint
const (
	// Separator splits keys into tokens
	Separator = "."
	// SWC single-token wildcard
	SWC = "*"
	// MWC zero-or-more tokens wildcard
	MWC = "#"
)

func isKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}

// ValidateRoutingKey checks key attached to published message
// Empty key is allowed, wildcards are not
func ValidateRoutingKey(key string) error {
	if key == "" {
		return nil
	}

	for _, token := range strings.Split(key, Separator) {
		for i := 0; i < len(token); i++ {
			if !isKeyChar(token[i]) {
				return errors.Wrapf(types.CodeSyntaxError, "routing key %q: invalid character %q", key, token[i])
			}
		}
	}

	return nil
}

// ValidateBindingKey checks pattern registered on binding
// Wildcard must occupy whole token and '#' cannot be adjacent to another wildcard
func ValidateBindingKey(key string) error {
	if key == "" {
		return nil
	}

	tokens := strings.Split(key, Separator)

	for i, token := range tokens {
		switch token {
		case MWC:
			if i > 0 && (tokens[i-1] == MWC || tokens[i-1] == SWC) {
				return errors.Wrapf(types.CodeSyntaxError, "binding key %q: '#' adjacent to wildcard", key)
			}
		case SWC:
			if i > 0 && tokens[i-1] == MWC {
				return errors.Wrapf(types.CodeSyntaxError, "binding key %q: '#' adjacent to wildcard", key)
			}
		default:
			for j := 0; j < len(token); j++ {
				if !isKeyChar(token[j]) {
					return errors.Wrapf(types.CodeSyntaxError, "binding key %q: invalid character %q", key, token[j])
				}
			}
		}
	}

	return nil
}

// Match reports whether routing key satisfies binding key pattern
func Match(pattern, key string) bool {
	return matchLevels(strings.Split(pattern, Separator), strings.Split(key, Separator))
}

func matchLevels(pattern, levels []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case MWC:
			// try to consume 0..n tokens
			for i := 0; i <= len(levels); i++ {
				if matchLevels(pattern[1:], levels[i:]) {
					return true
				}
			}
			return false
		case SWC:
			if len(levels) == 0 {
				return false
			}
		default:
			if len(levels) == 0 || levels[0] != pattern[0] {
				return false
			}
		}

		pattern = pattern[1:]
		levels = levels[1:]
	}

	return len(levels) == 0
}
