package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/troian/healthcheck"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/server"
)

var logger *zap.SugaredLogger

// these are provided at compile time
var (
	// GitCommit SHA hash
	GitCommit string

	// BuildDate build date
	BuildDate string

	// Version application version
	Version string
)

func init() {
	if Version == "" {
		Version = "UNKNOWN"
	}

	if BuildDate == "" {
		BuildDate = "UNKNOWN"
	}
}

func loadListeners(lCfg *configuration.ListenersConfig) []server.ListenerConfig {
	var listeners []server.ListenerConfig

	for name, ls := range lCfg.Ports {
		for port, cfg := range ls {
			host := lCfg.DefaultAddr
			if len(cfg.Host) > 0 {
				host = cfg.Host
			}

			listeners = append(listeners, server.ListenerConfig{
				Type:     name,
				Host:     host,
				Port:     port,
				Path:     cfg.Path,
				CertFile: cfg.TLS.Cert,
				KeyFile:  cfg.TLS.Key,
			})
		}
	}

	// map order is random, keep startup log stable
	sort.Slice(listeners, func(i, j int) bool {
		if listeners[i].Type != listeners[j].Type {
			return listeners[i].Type < listeners[j].Type
		}

		return listeners[i].Port < listeners[j].Port
	})

	return listeners
}

func main() {
	logger = configuration.GetHumanLogger()

	defer func() {
		logger.Info("service stopped")

		if r := recover(); r != nil {
			logger.Panic(r)
		}
	}()

	config, err := configuration.ReadConfig()
	if err != nil {
		logger.Errorw("read config", "error", err)
		return
	}

	if err = configuration.ConfigureLoggers(&config.System.Log); err != nil {
		logger.Errorw("configure loggers", "error", err)
		return
	}

	logger.Info("starting service...")
	logger.Infof("\n\tbuild info:\n"+
		"\t\tcommit : %s\n"+
		"\t\tdate   : %s\n"+
		"\t\tversion: %s\n", GitCommit, BuildDate, Version)

	logger.Info("working directory: ", configuration.WorkDir)

	listeners := loadListeners(&config.Listeners)
	if len(listeners) == 0 {
		logger.Error("no listeners")
		return
	}

	health := healthcheck.NewHandler()

	var httpSrv *http.Server

	if config.System.Health.Addr != "" {
		httpSrv = &http.Server{
			Addr:              config.System.Health.Addr,
			Handler:           server.HealthHandler(health),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("starting http server on " + httpSrv.Addr)
			if e := httpSrv.ListenAndServe(); e != nil && e != http.ErrServerClosed {
				logger.Errorw("http server", "error", e)
			}
			logger.Info("stopped http server on " + httpSrv.Addr)
		}()
	}

	listenerStatus := func(id string, status string) {
		logger.Info("listener state: ", "id: ", id, " status: ", status)
	}

	srv, err := server.NewServer(server.Config{
		Broker:          config.Broker,
		Workers:         config.System.Workers,
		WorkDir:         configuration.WorkDir,
		MetricsPeriod:   time.Duration(config.System.Metrics.Period) * time.Second,
		TransportStatus: listenerStatus,
		Health:          health,
	})
	if err != nil {
		logger.Errorf("server create: %s", err.Error())
		return
	}

	logger.Info("broker created, virtual hosts: ", srv.VHosts())

	for _, l := range listeners {
		if _, err = srv.ListenAndServe(l); err != nil {
			logger.Errorw("listen and serve", "type", l.Type, "port", l.Port, "error", err)
			break
		}
	}

	if err == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		logger.Info("service received signal: ", sig.String())
	}

	if err = srv.Shutdown(); err != nil {
		logger.Errorw("shutdown server", "error", err)
	}

	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = httpSrv.Shutdown(ctx)
	}
}
