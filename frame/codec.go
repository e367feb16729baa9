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

package frame

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/mailru/easyjson"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/types"
)

// HeaderSize length prefix of every frame
const HeaderSize = 4

// DefaultMaxSize applied when reader has no limit configured
const DefaultMaxSize = 1 << 20

var (
	// ErrTooLarge frame exceeds configured maximum
	ErrTooLarge = errors.Wrap(types.CodeFrameError, "frame too large")
	// ErrEmpty frame carries no payload
	ErrEmpty = errors.Wrap(types.CodeFrameError, "empty frame")
)

// Encode frame into length prefixed buffer
func Encode(f *Frame) ([]byte, error) {
	payload, err := easyjson.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(types.CodeFrameError, err.Error())
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	return buf, nil
}

// Decode frame payload without length prefix
func Decode(payload []byte) (*Frame, error) {
	f := &Frame{}

	if err := easyjson.Unmarshal(payload, f); err != nil {
		return nil, errors.Wrap(types.CodeSyntaxError, err.Error())
	}

	if f.Method == "" {
		return nil, errors.Wrap(types.CodeCommandInvalid, "frame without method")
	}

	return f, nil
}

// Reader reads frames from stream
type Reader struct {
	r   *bufio.Reader
	max int
	hdr [HeaderSize]byte
}

// NewReader allocate frame reader
// max limits payload size, 0 applies DefaultMaxSize
func NewReader(r io.Reader, max int) *Reader {
	if max <= 0 {
		max = DefaultMaxSize
	}

	return &Reader{
		r:   bufio.NewReader(r),
		max: max,
	}
}

// Read next frame
// Returns number of bytes consumed from stream along with frame
// Stream errors are returned as is, malformed frames as coded errors
func (r *Reader) Read() (*Frame, int, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		return nil, 0, err
	}

	size := int(binary.BigEndian.Uint32(r.hdr[:]))
	if size == 0 {
		return nil, HeaderSize, ErrEmpty
	}

	if size > r.max {
		return nil, HeaderSize, ErrTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, HeaderSize, err
	}

	f, err := Decode(payload)

	return f, HeaderSize + size, err
}

// Write frame to writer
// Caller serializes concurrent writes
func Write(w io.Writer, f *Frame) (int, error) {
	buf, err := Encode(f)
	if err != nil {
		return 0, err
	}

	return w.Write(buf)
}
