package configuration

import (
	"flag"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfig Load minimum working configuration to allow
// server start without user provided one
func DefaultConfig() *Config {
	c := Config{}
	if err := yaml.Unmarshal(defaultConfig, &c); err != nil {
		panic(err.Error())
	}

	return &c
}

// ReadConfig read service configuration
func ReadConfig() (*Config, error) {
	log := GetHumanLogger()
	log.Info("loading config")

	if !flag.Parsed() {
		flag.Parse()
	}

	if len(configFile) == 0 {
		log.Info("No config file provided\nuse --config option or RABBITLITE_CONFIG environment variable to provide own")
		log.Info("default config: \n", string(defaultConfig))

		return DefaultConfig(), nil
	}

	return LoadConfig(configFile)
}

// LoadConfig overlays default config with file
// File with .toml extension is decoded as TOML, anything else as YAML
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}

	c := DefaultConfig()

	if filepath.Ext(file) == ".toml" {
		if data, err = tomlToYaml(data); err != nil {
			return nil, errors.Wrapf(err, "config %s", file)
		}
	}

	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "config %s", file)
	}

	if err = c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", file)
	}

	return c, nil
}

// tomlToYaml converts document so both formats share one set of keys
func tomlToYaml(data []byte) ([]byte, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}

	return yaml.Marshal(tree.ToMap())
}
