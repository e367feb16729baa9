package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"regexp"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/configuration"
)

// SubProtocol clients announce in Sec-WebSocket-Protocol
const SubProtocol = "rabbitlite"

var subProtocolRegexp = regexp.MustCompile(`^rabbitlite(\.v1)?$`)

type httpServer struct {
	http *http.Server     // nolint:structcheck
	up   gws.HTTPUpgrader // nolint:structcheck
}

// wsConn carries one frame per binary message
type wsConn struct {
	*conn
	rem []byte
}

// Read ...
func (c *wsConn) Read(b []byte) (int, error) {
	for len(c.rem) == 0 {
		data, err := wsutil.ReadClientBinary(c.Conn)
		if err != nil {
			return 0, err
		}

		c.rem = data
	}

	n := copy(b, c.rem)
	c.rem = c.rem[n:]

	c.stat.BytesReceived(n)

	return n, nil
}

// Write ...
func (c *wsConn) Write(b []byte) (int, error) {
	err := wsutil.WriteServerBinary(c.Conn, b)
	n := 0
	if err == nil {
		n = len(b)
		c.stat.BytesSent(n)
	}

	return n, err
}

type ws struct {
	baseConfig
	httpServer
	listener net.Listener
	path     string
}

// NewWS create new websocket transport
// path defaults to "/"
func NewWS(config Config, path string) (Provider, error) {
	if config.Handler == nil {
		return nil, errors.New("ws: handler required")
	}

	l := &ws{}

	l.quit = make(chan struct{})
	l.config = config

	if len(path) == 0 {
		path = "/"
	} else if path[0] != '/' {
		path = "/" + path
	}
	l.path = path

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

		l.protocol = "wss"
		l.listener = tls.NewListener(ln, cfg)
	} else {
		l.protocol = "ws"
		l.listener = ln
	}

	l.log = configuration.GetLogger().Named("listener: " + l.protocol + "://" + ln.Addr().String() + path)

	mux := http.NewServeMux()
	mux.Handle(path, l)

	l.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// protocol is prevalidated by ServeHTTP below
	l.up.Protocol = func(string) bool {
		return true
	}

	return l, nil
}

func (l *ws) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	proto := r.Header.Get("Sec-WebSocket-Protocol")
	if proto == "" {
		http.Error(w, "bad \"Sec-WebSocket-Protocol\"", http.StatusBadRequest)
		return
	}

	if !subProtocolRegexp.MatchString(proto) {
		http.Error(w, "unsupported \"Sec-WebSocket-Protocol\"", http.StatusUnsupportedMediaType)
		return
	}

	cn, _, _, err := l.up.Upgrade(r, w)
	if err != nil {
		l.log.Errorw("upgrade error", "error", err)
		return
	}

	l.onConnection.Add(1)
	go func() {
		defer l.onConnection.Done()
		l.handleConnection(&wsConn{conn: newConn(cn, l.config.Metrics)})
	}()
}

// Port listener is bound to
func (l *ws) Port() string {
	_, port, _ := net.SplitHostPort(l.listener.Addr().String())
	return port
}

// Addr ...
func (l *ws) Addr() net.Addr {
	return l.listener.Addr()
}

// Ready ...
func (l *ws) Ready() error {
	select {
	case <-l.quit:
		return errors.New("listener closed")
	default:
	}

	return nil
}

// Alive ...
func (l *ws) Alive() error {
	return l.Ready()
}

// Serve ...
func (l *ws) Serve() error {
	err := l.http.Serve(l.listener)
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// Close websocket listener
func (l *ws) Close() error {
	var err error

	l.onceStop.Do(func() {
		close(l.quit)

		ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ctxCancel()

		err = l.http.Shutdown(ctx)
		l.onConnection.Wait()
	})

	return err
}
