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

// Package connection implements protocol session of client: connection and channels multiplexed over it.
package connection

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/frame"
	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/transport"
	"github.com/VolantMQ/rabbitlite/types"
	"github.com/VolantMQ/rabbitlite/vhost"
)

// State of connection
type State int

// Connection states
const (
	StateEstablished State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "CLOSED"
	}

	return "ESTABLISHED"
}

// Resolver looks up virtual host by name
type Resolver func(name string) (*vhost.VirtualHost, bool)

// ErrClosed operation on closed connection
var ErrClosed = errors.Wrap(types.CodeChannelError, "connection closed")

// Connection client session
type Connection interface {
	ID() string
	State() State
	VHost() *vhost.VirtualHost
	OpenChannel(id uint16) (*Channel, error)
	Channel(id uint16) (*Channel, bool)
	Channels() []uint16
	// Run reads frames until transport fails or connection is closed
	Run() error
	Close(reason error)
}

type impl struct {
	id           string
	conn         transport.Conn
	vhosts       Resolver
	metric       *metrics.Metrics
	log          *zap.SugaredLogger
	onClose      func(string)
	maxFrameSize int
	openTimeout  time.Duration
	idleTimeout  time.Duration

	wLock sync.Mutex

	lock     sync.Mutex
	state    State
	host     *vhost.VirtualHost
	channels map[uint16]*Channel

	onStop sync.Once
}

var _ Connection = (*impl)(nil)

// New allocate connection over transport
func New(opts ...Option) (Connection, error) {
	s := &impl{
		id:          uuid.New().String(),
		channels:    make(map[uint16]*Channel),
		openTimeout: 10 * time.Second,
	}

	if err := s.SetOptions(opts...); err != nil {
		return nil, err
	}

	if s.conn == nil {
		return nil, errors.New("connection: transport not set")
	}

	if s.vhosts == nil {
		return nil, errors.New("connection: vhost resolver not set")
	}

	s.log = configuration.GetLogger().Named("connection").With("id", s.id)

	return s, nil
}

// ID ...
func (s *impl) ID() string {
	return s.id
}

// State ...
func (s *impl) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state
}

// VHost negotiated by connection.open, nil before
func (s *impl) VHost() *vhost.VirtualHost {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.host
}

// Channel by id
func (s *impl) Channel(id uint16) (*Channel, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ch, ok := s.channels[id]
	return ch, ok
}

// Channels ids of open channels
func (s *impl) Channels() []uint16 {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids := make([]uint16, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Run ...
func (s *impl) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("panic while processing frame", "panic", r)
			err = errors.Wrapf(types.CodeInternalError, "panic: %v", r)
		}

		s.Close(err)
	}()

	r := frame.NewReader(s.conn, s.maxFrameSize)

	for {
		// connection.open must arrive within open timeout, idle timeout applies afterwards
		timeout := s.idleTimeout
		if s.VHost() == nil {
			timeout = s.openTimeout
		}

		var deadline time.Time
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}

		if err = s.conn.SetReadDeadline(deadline); err != nil {
			return err
		}

		var f *frame.Frame

		if f, _, err = r.Read(); err != nil {
			if err == io.EOF {
				return nil
			}

			if !isCoded(err) || types.CodeOf(err) == types.CodeFrameError {
				// stream cannot be resynchronized
				return err
			}

			// malformed payload, stream is still in sync
			if err = s.write(frame.Response, (&frame.Frame{}).Reply().Fail(err)); err != nil {
				return err
			}
			continue
		}

		s.metric.Received(f.Method)

		if f.Method == frame.ConnectionClose {
			s.write(frame.Response, f.Reply()) // nolint: errcheck
			return nil
		}

		if err = s.process(f); err != nil {
			return err
		}

		if s.State() == StateClosed {
			return nil
		}
	}
}

func isCoded(err error) bool {
	_, ok := errors.Cause(err).(types.ReasonCode)
	return ok
}

// write serializes frames of all channels
func (s *impl) write(method string, f *frame.Frame) error {
	f.Method = method

	buf, err := frame.Encode(f)
	if err != nil {
		return err
	}

	s.wLock.Lock()
	defer s.wLock.Unlock()

	if _, err = s.conn.Write(buf); err != nil {
		return err
	}

	s.metric.Sent(method)

	return nil
}

// Close connection, channels are force-closed and exclusive queues deleted
func (s *impl) Close(reason error) {
	s.onStop.Do(func() {
		s.lock.Lock()
		s.state = StateClosed
		channels := make([]*Channel, 0, len(s.channels))
		for _, ch := range s.channels {
			channels = append(channels, ch)
		}
		s.channels = make(map[uint16]*Channel)
		host := s.host
		s.lock.Unlock()

		for _, ch := range channels {
			ch.close()
		}

		if host != nil {
			host.ConnectionClosed(s.id)
		}

		if err := s.conn.Close(); err != nil {
			s.log.Debugw("close transport", "error", err)
		}

		if reason != nil {
			s.log.Infow("connection closed", "reason", reason.Error(), "channels", len(channels))
		} else {
			s.log.Debugw("connection closed", "channels", len(channels))
		}

		if s.onClose != nil {
			s.onClose(s.id)
		}
	})
}
