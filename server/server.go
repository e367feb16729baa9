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

// Package server is broker context: virtual hosts, connections and listeners of one broker instance.
package server

import (
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/troian/healthcheck"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/connection"
	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/transport"
	"github.com/VolantMQ/rabbitlite/types"
	"github.com/VolantMQ/rabbitlite/vhost"
)

var (
	// ErrInvalidListenerType invalid listener type
	ErrInvalidListenerType = errors.New("invalid listener type")
	// ErrTransportAlreadyExists transport already exists
	ErrTransportAlreadyExists = errors.New("transport already exists")
	// ErrShutdown server is stopped
	ErrShutdown = errors.New("server is shut down")
)

// Config of broker instance
type Config struct {
	Broker  configuration.BrokerConfig
	Workers configuration.WorkersConfig

	// WorkDir root of virtual host storage, relative definitions files are resolved against it
	WorkDir string

	// MetricsPeriod between metrics reports, 0 disables reporter
	MetricsPeriod time.Duration

	// OpenTimeout and IdleTimeout of client connections
	OpenTimeout time.Duration
	IdleTimeout time.Duration

	// TransportStatus user provided callback to track transport status
	// If not set than defaults to mock function
	TransportStatus func(id string, status string)
	Health          healthcheck.Handler
}

// ListenerConfig ...
type ListenerConfig struct {
	// Type tcp or ws
	Type     string
	Host     string
	Port     string
	Path     string
	CertFile string
	KeyFile  string
}

// Server server API
type Server interface {
	// ListenAndServe configures transport according to provided config
	// This is non blocking function. It returns nil if listener started
	// or error if any happened during configuration.
	// Transport status reported over TransportStatus callback in server configuration
	ListenAndServe(ListenerConfig) (transport.Provider, error)

	// VHost by name
	VHost(name string) (*vhost.VirtualHost, bool)

	// VHosts names of virtual hosts
	VHosts() []string

	Connections() *connection.Manager

	Metrics() *metrics.Metrics

	// Shutdown terminates the server by shutting down all the client connections and closing
	// configured listeners. It does full clean up of the resources
	Shutdown() error
}

type server struct {
	Config
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	reporter *metrics.Reporter
	pool     types.Pool
	vhosts   map[string]*vhost.VirtualHost
	conns    *connection.Manager
	quit     chan struct{}
	lock     sync.Mutex
	onClose  sync.Once

	transports struct {
		list map[string]transport.Provider
		wg   sync.WaitGroup
	}
}

// NewServer allocate server object, virtual hosts are loaded before it returns
func NewServer(config Config) (Server, error) {
	s := &server{
		Config:  config,
		metrics: metrics.New(),
		vhosts:  make(map[string]*vhost.VirtualHost),
		quit:    make(chan struct{}),
	}

	s.log = configuration.GetLogger().Named("server")
	s.transports.list = make(map[string]transport.Provider)

	if s.TransportStatus == nil {
		s.TransportStatus = func(string, string) {}
	}

	workers := config.Workers
	if workers.Size <= 0 {
		workers.Size = 1
	}

	if workers.Spawn <= 0 || workers.Spawn > workers.Size {
		workers.Spawn = 1
	}

	s.pool = types.NewPool(workers.Size, workers.Queue, workers.Spawn)

	for _, vc := range config.Broker.VHosts {
		if err := s.loadVHost(vc); err != nil {
			s.closeVHosts()
			_ = s.pool.Close()
			return nil, err
		}
	}

	s.conns = connection.NewManager(connection.ManagerConfig{
		VHosts:       s.VHost,
		Metrics:      s.metrics,
		MaxFrameSize: config.Broker.Options.MaxFrameSize,
		OpenTimeout:  config.OpenTimeout,
		IdleTimeout:  config.IdleTimeout,
	})

	if config.MetricsPeriod > 0 {
		s.reporter = metrics.NewReporter(s.metrics, config.MetricsPeriod, configuration.GetLogger().Named("metrics"))
	}

	return s, nil
}

func (s *server) loadVHost(vc configuration.VHostConfig) error {
	if _, ok := s.vhosts[vc.Name]; ok {
		return errors.Errorf("virtual host %q declared twice", vc.Name)
	}

	host, err := vhost.New(vhost.Config{
		Name:             vc.Name,
		WorkDir:          s.WorkDir,
		Backend:          vc.Persistence,
		Pool:             s.pool,
		Prefetch:         s.Broker.Options.Prefetch,
		ReportUnroutable: s.Broker.Options.ReportUnroutable,
		Metrics:          s.metrics,
	})
	if err != nil {
		return err
	}

	s.vhosts[vc.Name] = host

	if vc.Definitions == "" {
		return nil
	}

	file := vc.Definitions
	if !filepath.IsAbs(file) {
		file = filepath.Join(s.WorkDir, file)
	}

	defs, err := configuration.LoadDefinitions(file)
	if err != nil {
		return errors.Wrapf(err, "virtual host %q", vc.Name)
	}

	return host.ApplyDefinitions(defs)
}

// VHost ...
func (s *server) VHost(name string) (*vhost.VirtualHost, bool) {
	select {
	case <-s.quit:
		return nil, false
	default:
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	v, ok := s.vhosts[name]
	return v, ok
}

// VHosts ...
func (s *server) VHosts() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	names := make([]string, 0, len(s.vhosts))
	for name := range s.vhosts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Connections ...
func (s *server) Connections() *connection.Manager {
	return s.conns
}

// Metrics ...
func (s *server) Metrics() *metrics.Metrics {
	return s.metrics
}

// ListenAndServe start listener
func (s *server) ListenAndServe(config ListenerConfig) (transport.Provider, error) {
	select {
	case <-s.quit:
		return nil, ErrShutdown
	default:
	}

	var l transport.Provider
	var err error

	tConfig := transport.Config{
		Host:     config.Host,
		Port:     config.Port,
		CertFile: config.CertFile,
		KeyFile:  config.KeyFile,
		Handler:  s.conns,
		Metrics:  s.metrics,
	}

	switch config.Type {
	case configuration.ListenerTCP:
		l, err = transport.NewTCP(tConfig)
	case configuration.ListenerWS:
		l, err = transport.NewWS(tConfig, config.Path)
	default:
		return nil, ErrInvalidListenerType
	}

	if err != nil {
		return nil, err
	}

	defer s.lock.Unlock()
	s.lock.Lock()

	id := l.Protocol() + "://" + l.Addr().String()

	if _, ok := s.transports.list[id]; ok {
		_ = l.Close()
		return nil, ErrTransportAlreadyExists
	}

	s.transports.list[id] = l
	s.transports.wg.Add(1)

	if s.Health != nil {
		addr := l.Addr().String()

		_ = s.Health.AddReadinessCheck("listener:"+id, func() error {
			if e := l.Ready(); e != nil {
				return e
			}

			return healthcheck.TCPDialCheck(addr, 1*time.Second)()
		})

		_ = s.Health.AddLivenessCheck("listener:"+id, func() error {
			return l.Alive()
		})
	}

	go func() {
		defer s.transports.wg.Done()

		s.TransportStatus(id, "started")

		status := "stopped"

		if e := l.Serve(); e != nil {
			status = e.Error()
		}

		s.TransportStatus(id, status)
	}()

	return l, nil
}

// HealthHandler mounts liveness and readiness endpoints under /health/
func HealthHandler(h healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health/", http.StripPrefix("/health", h))

	return mux
}

func (s *server) closeVHosts() {
	for name, host := range s.vhosts {
		host.Shutdown()
		delete(s.vhosts, name)
	}
}

// Shutdown server
func (s *server) Shutdown() error {
	s.onClose.Do(func() {
		// stop accepting new connections
		close(s.quit)

		s.conns.Shutdown()

		s.lock.Lock()
		// close all listeners, Serve returns once listener is closed
		for id, l := range s.transports.list {
			if err := l.Close(); err != nil {
				s.log.Errorw("close listener", "listener", id, "error", err)
			}
		}
		s.lock.Unlock()

		s.transports.wg.Wait()

		s.lock.Lock()
		for id := range s.transports.list {
			delete(s.transports.list, id)
		}
		s.lock.Unlock()

		_ = s.pool.Close()

		s.lock.Lock()
		s.closeVHosts()
		s.lock.Unlock()

		if s.reporter != nil {
			s.reporter.Stop()
			s.reporter.Report()
		}
	})

	return nil
}
