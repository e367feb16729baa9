package configuration

import (
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/persistence"
)

// TimestampConfig entry in system.log.console.timestamp
type TimestampConfig struct {
	Format string `yaml:"format,omitempty"`
}

// ConsoleLogConfig entry in system.log.console
type ConsoleLogConfig struct {
	Level     string           `yaml:"level,omitempty"`
	Timestamp *TimestampConfig `yaml:"timestamp,omitempty"`
}

// LogConfig entry in system.log
type LogConfig struct {
	Console ConsoleLogConfig `yaml:"console,omitempty"`
}

// WorkersConfig entry in system.workers
// Dispatch pool shared by all virtual hosts
type WorkersConfig struct {
	Size  int `yaml:"size,omitempty"`
	Queue int `yaml:"queue,omitempty"`
	Spawn int `yaml:"spawn,omitempty"`
}

// MetricsConfig entry in system.metrics
type MetricsConfig struct {
	// Period in seconds between reports, 0 disables reporter
	Period int `yaml:"period,omitempty"`
}

// HealthConfig entry in system.health
type HealthConfig struct {
	// Addr of HTTP health endpoint, empty disables it
	Addr string `yaml:"addr,omitempty"`
}

// SystemConfig entry in system
type SystemConfig struct {
	Log     LogConfig     `yaml:"log,omitempty"`
	Workers WorkersConfig `yaml:"workers,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Health  HealthConfig  `yaml:"health,omitempty"`
}

// OptionsConfig entry in broker.options
type OptionsConfig struct {
	Prefetch         int  `yaml:"prefetch,omitempty"`
	ReportUnroutable bool `yaml:"reportUnroutable,omitempty"`
	MaxFrameSize     int  `yaml:"maxFrameSize,omitempty"`
}

// VHostConfig entry in broker.vhosts
type VHostConfig struct {
	Name        string `yaml:"name"`
	Persistence string `yaml:"persistence,omitempty"`
	Definitions string `yaml:"definitions,omitempty"`
}

// BrokerConfig entry in broker
type BrokerConfig struct {
	Options OptionsConfig `yaml:"options,omitempty"`
	VHosts  []VHostConfig `yaml:"vhosts,omitempty"`
}

// TLSConfig certificate pair of listener
type TLSConfig struct {
	Cert string `yaml:"cert,omitempty"`
	Key  string `yaml:"key,omitempty"`
}

// PortConfig configuration of tcp/ws listeners
type PortConfig struct {
	Host string    `yaml:"host,omitempty"`
	Path string    `yaml:"path,omitempty"`
	TLS  TLSConfig `yaml:"tls,omitempty"`
}

// Validate ...
func (c PortConfig) Validate() error {
	return validation.ValidateStruct(&c.TLS,
		validation.Field(&c.TLS.Cert, validation.Required.When(c.TLS.Key != "")),
		validation.Field(&c.TLS.Key, validation.Required.When(c.TLS.Cert != "")),
	)
}

// ListenersConfig entry in listeners
// Ports maps listener type (tcp, ws) to port number and its config
type ListenersConfig struct {
	DefaultAddr string                           `yaml:"defaultAddr,omitempty"`
	Ports       map[string]map[string]PortConfig `yaml:"ports,omitempty"`
}

// Config system-wide config
type Config struct {
	Version   string          `yaml:"version,omitempty"`
	System    SystemConfig    `yaml:"system,omitempty"`
	Broker    BrokerConfig    `yaml:"broker,omitempty"`
	Listeners ListenersConfig `yaml:"listeners,omitempty"`
}

// Listener types
const (
	ListenerTCP = "tcp"
	ListenerWS  = "ws"
)

func stringsToIface(s []string) []interface{} {
	res := make([]interface{}, 0, len(s))
	for _, v := range s {
		res = append(res, v)
	}

	return res
}

// Validate config
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.System),
		validation.Field(&c.Broker),
		validation.Field(&c.Listeners),
	)
}

// Validate ...
func (c SystemConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Log),
		validation.Field(&c.Workers),
		validation.Field(&c.Metrics),
	)
}

// Validate ...
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c.Console,
		validation.Field(&c.Console.Level, validation.In("debug", "info", "warn", "error", "dpanic", "panic", "fatal")),
	)
}

// Validate ...
func (c WorkersConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Size, validation.Required, validation.Min(1)),
		validation.Field(&c.Queue, validation.Min(0)),
		validation.Field(&c.Spawn, validation.Required, validation.Min(1), validation.Max(c.Size)),
	)
}

// Validate ...
func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Period, validation.Min(0)),
	)
}

// Validate ...
func (c BrokerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Options),
		validation.Field(&c.VHosts, validation.Required, validation.By(uniqueVHosts)),
	)
}

// Validate ...
func (c OptionsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Prefetch, validation.Min(0)),
		validation.Field(&c.MaxFrameSize, validation.Min(0)),
	)
}

// Validate ...
func (c VHostConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Persistence, validation.In(stringsToIface(persistence.Backends)...)),
	)
}

// Validate ...
func (c ListenersConfig) Validate() error {
	for t, ports := range c.Ports {
		if t != ListenerTCP && t != ListenerWS {
			return errors.Errorf("listeners: unknown type %q", t)
		}

		for port, cfg := range ports {
			if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
				return errors.Errorf("listeners: %s: invalid port %q", t, port)
			}

			if err := cfg.Validate(); err != nil {
				return errors.Wrapf(err, "listeners: %s: %s", t, port)
			}
		}
	}

	return nil
}

func uniqueVHosts(value interface{}) error {
	vhosts, _ := value.([]VHostConfig)

	names := make(map[string]bool)
	for _, v := range vhosts {
		if names[v.Name] {
			return fmt.Errorf("duplicate virtual host %q", v.Name)
		}
		names[v.Name] = true
	}

	return nil
}
