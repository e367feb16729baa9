package connection

import (
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/frame"
	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/types"
)

// DefaultVHost used when connection.open does not name one
const DefaultVHost = "/"

// process executes request and writes response
// Returned error closes connection
func (s *impl) process(f *frame.Frame) error {
	resp := f.Reply()

	after, err := s.dispatch(f, resp)
	if err != nil {
		resp.Fail(err)

		if types.CodeOf(err) == types.CodeInternalError {
			s.log.Warnw("operation failed", "method", f.Method, "channel", f.Channel, "error", err)
		}
	}

	if err = s.write(frame.Response, resp); err != nil {
		return err
	}

	if after != nil {
		after()
	}

	return nil
}

func (s *impl) dispatch(f *frame.Frame, resp *frame.Frame) (func(), error) {
	switch f.Method {
	case frame.ConnectionOpen:
		return nil, s.open(f, resp)
	case frame.ChannelOpen:
		_, err := s.OpenChannel(f.Channel)
		return nil, err
	}

	if s.VHost() == nil {
		return nil, errors.Wrap(types.CodeChannelError, "connection is not open")
	}

	if f.Method == frame.ChannelClose {
		ch, ok := s.Channel(f.Channel)
		if !ok {
			return nil, errors.Wrapf(types.CodeChannelError, "channel %d is not open", f.Channel)
		}

		ch.Close()
		return nil, nil
	}

	ch, ok := s.Channel(f.Channel)
	if !ok {
		return nil, errors.Wrapf(types.CodeChannelError, "channel %d is not open", f.Channel)
	}

	return s.invoke(ch, f, resp)
}

// invoke runs channel operation, panic closes channel only
func (s *impl) invoke(ch *Channel, f *frame.Frame, resp *frame.Frame) (after func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("panic in channel operation", "channel", ch.ID(), "method", f.Method, "panic", r)

			err = errors.Wrapf(types.CodeInternalError, "%s: %v", f.Method, r)
			after = func() {
				ch.Close()

				cl := &frame.Frame{Channel: ch.ID()}
				cl.Fail(err)
				s.write(frame.ChannelClose, cl) // nolint: errcheck
			}
		}
	}()

	if err = f.Validate(); err != nil {
		return nil, err
	}

	switch f.Method {
	case frame.ExchangeDeclare:
		err = ch.DeclareExchange(f.Exchange, f.ExchangeType, f.Durable, f.AutoDelete, f.Args)
		resp.Exchange = f.Exchange
	case frame.ExchangeDelete:
		err = ch.DeleteExchange(f.Exchange, f.IfUnused)
	case frame.QueueDeclare:
		q, e := ch.DeclareQueue(f.Queue, f.Durable, f.Exclusive, f.AutoDelete, f.Args)
		if err = e; err == nil {
			resp.Queue = q.Name()
			resp.MessageCount = q.Len()
		}
	case frame.QueueDelete:
		resp.MessageCount, err = ch.DeleteQueue(f.Queue, f.IfUnused)
	case frame.QueueBind:
		err = ch.Bind(f.Exchange, f.Queue, f.BindingKey)
	case frame.QueueUnbind:
		err = ch.Unbind(f.Exchange, f.Queue, f.BindingKey)
	case frame.BasicPublish:
		err = ch.Publish(f.Exchange, message.Properties{
			ID:           f.MessageID,
			DeliveryMode: message.DeliveryMode(f.DeliveryMode),
			RoutingKey:   f.RoutingKey,
		}, f.Body)
	case frame.BasicConsume:
		var tag string
		if tag, err = ch.consume(f.Queue, f.ConsumerTag, f.AutoAck, f.Prefetch); err == nil {
			resp.ConsumerTag = tag
			// deliveries follow consume response
			after = func() { ch.start(tag) }
		}
	case frame.BasicCancel:
		err = ch.Cancel(f.ConsumerTag)
		resp.ConsumerTag = f.ConsumerTag
	case frame.BasicAck:
		err = ch.Ack(f.Queue, f.MessageID)
	default:
		err = errors.Wrapf(types.CodeCommandInvalid, "unknown method %q", f.Method)
	}

	return after, err
}

// open negotiates virtual host
func (s *impl) open(f *frame.Frame, resp *frame.Frame) error {
	name := f.VHost
	if name == "" {
		name = DefaultVHost
	}

	host, ok := s.vhosts(name)
	if !ok {
		return errors.Wrapf(types.CodeNotAllowed, "virtual host %q", name)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateEstablished {
		return ErrClosed
	}

	if s.host != nil {
		return errors.Wrap(types.CodeCommandInvalid, "connection already open")
	}

	s.host = host
	resp.VHost = name

	s.log.Debugw("connection open", "vhost", name, "remote", s.conn.RemoteAddr().String())

	return nil
}

// OpenChannel ...
func (s *impl) OpenChannel(id uint16) (*Channel, error) {
	if id == 0 {
		return nil, errors.Wrap(types.CodeCommandInvalid, "channel 0 is reserved")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateEstablished {
		return nil, ErrClosed
	}

	if s.host == nil {
		return nil, errors.Wrap(types.CodeChannelError, "connection is not open")
	}

	if _, ok := s.channels[id]; ok {
		return nil, errors.Wrapf(types.CodeChannelError, "channel %d already open", id)
	}

	ch := newChannel(id, s, s.host)
	s.channels[id] = ch
	s.metric.ChannelOpened()

	return ch, nil
}

func (s *impl) removeChannel(id uint16) {
	s.lock.Lock()
	delete(s.channels, id)
	s.lock.Unlock()
}
