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

package topics

import (
	"strings"
)

type node struct {
	values   map[string]struct{}
	parent   *node
	children map[string]*node
}

func newNode(parent *node) *node {
	return &node{
		values:   make(map[string]struct{}),
		children: make(map[string]*node),
		parent:   parent,
	}
}

// Trie indexes binding patterns of one exchange
// Value is a queue name, same queue may be registered under any number of patterns.
// Not safe for concurrent use, owner serializes access
type Trie struct {
	root  *node
	count int
}

// NewTrie allocate empty trie
func NewTrie() *Trie {
	return &Trie{
		root: newNode(nil),
	}
}

// Len number of (pattern, value) pairs
func (t *Trie) Len() int {
	return t.count
}

func (t *Trie) leafInsertNode(levels []string) *node {
	root := t.root

	for _, level := range levels {
		n, ok := root.children[level]
		if !ok {
			n = newNode(root)
			root.children[level] = n
		}

		root = n
	}

	return root
}

func (t *Trie) leafSearchNode(levels []string) *node {
	root := t.root

	for _, token := range levels {
		n, ok := root.children[token]
		if !ok {
			return nil
		}

		root = n
	}

	return root
}

// Insert pattern with value
// Returns false if pair already exists
func (t *Trie) Insert(pattern, value string) bool {
	root := t.leafInsertNode(strings.Split(pattern, Separator))

	if _, ok := root.values[value]; ok {
		return false
	}

	root.values[value] = struct{}{}
	t.count++

	return true
}

// Remove pattern with value
// Returns false if pair does not exist
func (t *Trie) Remove(pattern, value string) bool {
	levels := strings.Split(pattern, Separator)

	root := t.leafSearchNode(levels)
	if root == nil {
		return false
	}

	if _, ok := root.values[value]; !ok {
		return false
	}

	delete(root.values, value)
	t.count--

	// Run up and on each level and check if level has values and nested nodes
	// If both are empty tell parent node to remove that token
	level := len(levels)
	for leafNode := root; leafNode.parent != nil; leafNode = leafNode.parent {
		if len(leafNode.values) == 0 && len(leafNode.children) == 0 {
			delete(leafNode.parent.children, levels[level-1])
		}

		level--
	}

	return true
}

// Search collects values of every pattern matching routing key
func (t *Trie) Search(key string) map[string]struct{} {
	res := make(map[string]struct{})

	recurseSearch(t.root, strings.Split(key, Separator), res)

	return res
}

func recurseSearch(root *node, levels []string, res map[string]struct{}) {
	if n, ok := root.children[MWC]; ok {
		// '#' swallows any number of tokens including none
		for i := 0; i <= len(levels); i++ {
			recurseSearch(n, levels[i:], res)
		}
	}

	if len(levels) == 0 {
		for v := range root.values {
			res[v] = struct{}{}
		}
		return
	}

	if n, ok := root.children[levels[0]]; ok {
		recurseSearch(n, levels[1:], res)
	}

	if n, ok := root.children[SWC]; ok {
		recurseSearch(n, levels[1:], res)
	}
}
