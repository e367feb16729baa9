package vhost

import (
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/exchange"
)

// ApplyDefinitions declares topology from definitions file
// Entities declared here have no owner connection
func (v *VirtualHost) ApplyDefinitions(d *configuration.Definitions) error {
	if d == nil {
		return nil
	}

	for _, e := range d.Exchanges {
		t, err := exchange.ParseType(e.Type)
		if err != nil {
			return errors.Wrapf(err, "definitions: exchange %q", e.Name)
		}

		if _, err = v.DeclareExchange(e.Name, t, e.Durable, e.AutoDelete, configuration.StringArgs(e.Arguments)); err != nil {
			return errors.Wrapf(err, "definitions: exchange %q", e.Name)
		}
	}

	for _, q := range d.Queues {
		if _, err := v.DeclareQueue(q.Name, q.Durable, q.Exclusive, q.AutoDelete, configuration.StringArgs(q.Arguments), ""); err != nil {
			return errors.Wrapf(err, "definitions: queue %q", q.Name)
		}
	}

	for _, b := range d.Bindings {
		if err := v.Bind(b.Source, b.Destination, b.RoutingKey); err != nil {
			return errors.Wrapf(err, "definitions: binding %s -> %s", b.Source, b.Destination)
		}
	}

	v.log.Infow("definitions applied",
		"exchanges", len(d.Exchanges),
		"queues", len(d.Queues),
		"bindings", len(d.Bindings))

	return nil
}
