package transport

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/configuration"
)

type tcp struct {
	baseConfig

	listener net.Listener
}

// NewTCP create new tcp transport
func NewTCP(config Config) (Provider, error) {
	if config.Handler == nil {
		return nil, errors.New("tcp: handler required")
	}

	l := &tcp{}

	l.quit = make(chan struct{})
	l.config = config

	ln, err := net.Listen("tcp", net.JoinHostPort(config.Host, config.Port))
	if err != nil {
		return nil, err
	}

	if l.tls() {
		var cfg *tls.Config
		if cfg, err = loadTLS(config.CertFile, config.KeyFile); err != nil {
			ln.Close() // nolint: errcheck
			return nil, err
		}

		l.protocol = "ssl"
		l.listener = tls.NewListener(ln, cfg)
	} else {
		l.protocol = "tcp"
		l.listener = ln
	}

	l.log = configuration.GetLogger().Named("listener: " + l.protocol + "://" + ln.Addr().String())

	return l, nil
}

// Port listener is bound to
func (l *tcp) Port() string {
	_, port, _ := net.SplitHostPort(l.listener.Addr().String())
	return port
}

// Addr ...
func (l *tcp) Addr() net.Addr {
	return l.listener.Addr()
}

// Ready ...
func (l *tcp) Ready() error {
	select {
	case <-l.quit:
		return errors.New("listener closed")
	default:
	}

	return nil
}

// Alive ...
func (l *tcp) Alive() error {
	return l.Ready()
}

// Close tcp listener
func (l *tcp) Close() error {
	var err error

	l.onceStop.Do(func() {
		close(l.quit)

		err = l.listener.Close()
		l.onConnection.Wait()
	})

	return err
}

// Serve start serving connections
func (l *tcp) Serve() error {
	var tempDelay time.Duration // how long to sleep on accept failure

	for {
		cn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.quit:
				return nil
			default:
			}

			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				l.log.Errorw("Couldn't accept connection. Retrying",
					"error", err,
					"retryIn", tempDelay)

				time.Sleep(tempDelay)
				continue
			}
			return err
		}

		tempDelay = 0

		l.onConnection.Add(1)
		go func(cn net.Conn) {
			defer l.onConnection.Done()

			l.handleConnection(newConn(cn, l.config.Metrics))
		}(cn)
	}
}
