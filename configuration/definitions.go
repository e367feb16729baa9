package configuration

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/types"
)

// DefinitionExchange entry in [[exchanges]]
type DefinitionExchange struct {
	Name       string                 `toml:"name"`
	Type       string                 `toml:"type"`
	Durable    bool                   `toml:"durable"`
	AutoDelete bool                   `toml:"auto_delete"`
	Arguments  map[string]interface{} `toml:"arguments"`
}

// DefinitionQueue entry in [[queues]]
type DefinitionQueue struct {
	Name       string                 `toml:"name"`
	Durable    bool                   `toml:"durable"`
	Exclusive  bool                   `toml:"exclusive"`
	AutoDelete bool                   `toml:"auto_delete"`
	Arguments  map[string]interface{} `toml:"arguments"`
}

// DefinitionBinding entry in [[bindings]]
type DefinitionBinding struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
	RoutingKey  string `toml:"routing_key"`
}

// Definitions topology declared on virtual host at startup
type Definitions struct {
	Exchanges []DefinitionExchange `toml:"exchanges"`
	Queues    []DefinitionQueue    `toml:"queues"`
	Bindings  []DefinitionBinding  `toml:"bindings"`
}

// LoadDefinitions from TOML file
func LoadDefinitions(file string) (*Definitions, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "definitions")
	}

	return ParseDefinitions(data)
}

// ParseDefinitions from TOML document
func ParseDefinitions(data []byte) (*Definitions, error) {
	d := &Definitions{}

	if err := toml.Unmarshal(data, d); err != nil {
		return nil, errors.Wrap(err, "definitions")
	}

	return d, nil
}

// StringArgs flattens TOML arguments into declare args
func StringArgs(a map[string]interface{}) types.Args {
	if len(a) == 0 {
		return nil
	}

	res := make(types.Args, len(a))
	for k, v := range a {
		res[k] = fmt.Sprint(v)
	}

	return res
}
