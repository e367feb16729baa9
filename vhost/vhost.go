// Package vhost bundles exchanges, queues, bindings and consumers of one virtual host.
package vhost

import (
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/binding"
	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/consumer"
	"github.com/VolantMQ/rabbitlite/exchange"
	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/persistence"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/queue"
	"github.com/VolantMQ/rabbitlite/topics"
	"github.com/VolantMQ/rabbitlite/types"
)

// Config of virtual host
type Config struct {
	Name string
	// WorkDir root of storage, host keeps its files in WorkDir/<name>
	WorkDir string
	// Backend of metadata store, message store is file based unless backend is mem
	Backend string
	Pool    types.Pool
	// Prefetch default number of unacked messages per consumer
	Prefetch         int
	ReportUnroutable bool
	Metrics          *metrics.Metrics
}

// VirtualHost isolated namespace of exchanges, queues and bindings
type VirtualHost struct {
	name             string
	dir              string
	reportUnroutable bool
	log              *zap.SugaredLogger
	metrics          *metrics.Metrics

	meta     persistenceTypes.Provider
	messages persistenceTypes.Provider

	exchanges *exchange.Registry
	bindings  *binding.Table
	queues    *queue.Manager
	consumers *consumer.Manager

	// serializes operations spanning several tables
	lock sync.Mutex
}

// Dir storage directory of virtual host
func Dir(workDir string, name string) string {
	return filepath.Join(workDir, url.PathEscape(name))
}

func openStorage(c *Config, dir string) (meta persistenceTypes.Provider, messages persistenceTypes.Provider, err error) {
	backend := c.Backend
	if backend == "" {
		backend = persistence.BackendBoltDB
	}

	if backend == persistence.BackendMem {
		meta, err = persistence.New(&persistenceTypes.MemConfig{})
		return meta, meta, err
	}

	if err = os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, err
	}

	cfg, err := persistence.Config(backend, filepath.Join(dir, url.PathEscape(c.Name)+".db"), dir)
	if err != nil {
		return nil, nil, err
	}

	if meta, err = persistence.New(cfg); err != nil {
		return nil, nil, err
	}

	if messages, err = persistence.New(&persistenceTypes.FilesConfig{Dir: dir}); err != nil {
		meta.Shutdown() // nolint: errcheck
		return nil, nil, err
	}

	return meta, messages, nil
}

// New open storage of virtual host and reload durable entities
func New(c Config) (*VirtualHost, error) {
	if c.Name == "" {
		return nil, errors.New("vhost: empty name")
	}

	if c.Pool == nil {
		return nil, errors.New("vhost: pool required")
	}

	v := &VirtualHost{
		name:             c.Name,
		dir:              Dir(c.WorkDir, c.Name),
		reportUnroutable: c.ReportUnroutable,
		log:              configuration.GetLogger().Named("vhost").With("vhost", c.Name),
		metrics:          c.Metrics,
	}

	var err error
	if v.meta, v.messages, err = openStorage(&c, v.dir); err != nil {
		return nil, errors.Wrapf(err, "vhost %q: open storage", c.Name)
	}

	defer func() {
		if err != nil {
			v.shutdownStorage()
		}
	}()

	var exBucket, qBucket, bBucket, mBucket persistenceTypes.Bucket

	if exBucket, err = v.meta.Bucket(persistenceTypes.KindExchanges); err != nil {
		return nil, err
	}

	if qBucket, err = v.meta.Bucket(persistenceTypes.KindQueues); err != nil {
		return nil, err
	}

	if bBucket, err = v.meta.Bucket(persistenceTypes.KindBindings); err != nil {
		return nil, err
	}

	if mBucket, err = v.messages.Bucket(persistenceTypes.KindMessages); err != nil {
		return nil, err
	}

	v.exchanges = exchange.NewRegistry(exBucket)
	v.bindings = binding.NewTable(bBucket)
	v.queues = queue.NewManager(qBucket, mBucket)
	v.consumers = consumer.NewManager(consumer.Config{
		Queues:   v.queues,
		Pool:     c.Pool,
		Prefetch: c.Prefetch,
		OnIdle:   v.onQueueIdle,
		OnDelivered: func(d *consumer.Delivery) {
			v.metrics.Delivered(d.Item.Redelivered)
		},
	})

	if err = v.load(); err != nil {
		return nil, errors.Wrapf(err, "vhost %q: load", c.Name)
	}

	v.log.Infow("virtual host started",
		"exchanges", v.exchanges.Size(),
		"queues", v.queues.Size(),
		"dir", v.dir)

	return v, nil
}

// load durable entities before host accepts operations
func (v *VirtualHost) load() error {
	if err := v.exchanges.Load(); err != nil {
		return err
	}

	if err := v.queues.Load(); err != nil {
		return err
	}

	return v.bindings.Load(func(b binding.Binding) bool {
		return v.exchanges.Exists(b.Exchange) && v.queues.Exists(b.Queue)
	})
}

func (v *VirtualHost) shutdownStorage() {
	if v.meta != nil {
		if err := v.meta.Shutdown(); err != nil {
			v.log.Errorw("couldn't close metadata store", "error", err)
		}
	}

	if v.messages != nil && v.messages != v.meta {
		if err := v.messages.Shutdown(); err != nil {
			v.log.Errorw("couldn't close message store", "error", err)
		}
	}
}

// Shutdown closes storage
func (v *VirtualHost) Shutdown() {
	v.lock.Lock()
	defer v.lock.Unlock()

	v.shutdownStorage()
}

// Name ...
func (v *VirtualHost) Name() string {
	return v.name
}

// Dir storage directory
func (v *VirtualHost) Dir() string {
	return v.dir
}

// DeclareExchange ...
func (v *VirtualHost) DeclareExchange(name string, t exchange.Type, durable, autoDelete bool, args types.Args) (*exchange.Exchange, error) {
	e, created, err := v.exchanges.Declare(name, t, durable, autoDelete, args)
	if err != nil {
		return nil, err
	}

	if created {
		v.log.Debugw("exchange declared", "exchange", name, "type", t.String(), "durable", durable)
	}

	return e, nil
}

// DeleteExchange removes exchange and every binding referencing it
// ifUnused rejects delete of exchange having bindings
func (v *VirtualHost) DeleteExchange(name string, ifUnused bool) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.deleteExchange(name, ifUnused)
}

func (v *VirtualHost) deleteExchange(name string, ifUnused bool) error {
	if !v.exchanges.Exists(name) {
		return errors.Wrapf(types.CodeNotFound, "exchange %q", name)
	}

	if ifUnused && v.bindings.Count(name) > 0 {
		return errors.Wrapf(types.CodePreconditionFailed, "exchange %q in use", name)
	}

	if _, err := v.bindings.RemoveExchange(name); err != nil {
		return err
	}

	if err := v.exchanges.Delete(name); err != nil {
		return err
	}

	v.log.Debugw("exchange deleted", "exchange", name)

	return nil
}

// DeclareQueue ...
// owner is id of connection, it owns queue when exclusive is set
func (v *VirtualHost) DeclareQueue(name string, durable, exclusive, autoDelete bool, args types.Args, owner string) (*queue.Queue, error) {
	q, created, err := v.queues.Declare(name, durable, exclusive, autoDelete, args, owner)
	if err != nil {
		return nil, err
	}

	if created {
		v.log.Debugw("queue declared", "queue", name, "durable", durable, "exclusive", exclusive)
	}

	return q, nil
}

// DeleteQueue removes queue, its bindings, consumers and messages
// Returns number of discarded messages
func (v *VirtualHost) DeleteQueue(name string, ifUnused bool) (int, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.deleteQueue(name, ifUnused)
}

func (v *VirtualHost) deleteQueue(name string, ifUnused bool) (int, error) {
	q, err := v.queues.Select(name)
	if err != nil {
		return 0, err
	}

	if ifUnused && v.consumers.Count(name) > 0 {
		return 0, errors.Wrapf(types.CodePreconditionFailed, "queue %q in use", name)
	}

	removed, err := v.bindings.RemoveQueue(name)
	if err != nil {
		return 0, err
	}

	v.consumers.RemoveQueue(name)

	count := q.Len()

	if err = v.queues.Delete(name); err != nil {
		return 0, err
	}

	v.log.Debugw("queue deleted", "queue", name, "messages", count)

	v.dropUnusedExchanges(removed)

	return count, nil
}

// dropUnusedExchanges deletes auto-delete exchanges left without bindings
func (v *VirtualHost) dropUnusedExchanges(removed []binding.Binding) {
	seen := make(map[string]bool)

	for _, b := range removed {
		if seen[b.Exchange] {
			continue
		}
		seen[b.Exchange] = true

		e, err := v.exchanges.Select(b.Exchange)
		if err != nil || !e.AutoDelete || v.bindings.Count(b.Exchange) > 0 {
			continue
		}

		if err = v.deleteExchange(b.Exchange, false); err != nil {
			v.log.Errorw("couldn't auto-delete exchange", "exchange", b.Exchange, "error", err)
		}
	}
}

func (v *VirtualHost) onQueueIdle(name string) {
	v.lock.Lock()
	defer v.lock.Unlock()

	// consumer could subscribe again before host lock was taken
	if v.consumers.Count(name) > 0 {
		return
	}

	if _, err := v.deleteQueue(name, false); err != nil {
		v.log.Debugw("couldn't auto-delete queue", "queue", name, "error", err)
	}
}

// Bind queue to exchange
func (v *VirtualHost) Bind(exchangeName, queueName, key string) error {
	e, err := v.exchanges.Select(exchangeName)
	if err != nil {
		return err
	}

	q, err := v.queues.Select(queueName)
	if err != nil {
		return err
	}

	switch e.Type {
	case exchange.Topic:
		err = topics.ValidateBindingKey(key)
	case exchange.Direct:
		err = topics.ValidateRoutingKey(key)
	}

	if err != nil {
		return err
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	// entity could be deleted while lock was not held
	if !v.exchanges.Exists(exchangeName) {
		return errors.Wrapf(types.CodeNotFound, "exchange %q", exchangeName)
	}

	if !v.queues.Exists(queueName) {
		return errors.Wrapf(types.CodeNotFound, "queue %q", queueName)
	}

	_, err = v.bindings.Bind(binding.Binding{Exchange: exchangeName, Queue: queueName, Key: key}, e.Durable && q.Durable())

	return err
}

// Unbind queue from exchange
func (v *VirtualHost) Unbind(exchangeName, queueName, key string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if !v.exchanges.Exists(exchangeName) {
		return errors.Wrapf(types.CodeNotFound, "exchange %q", exchangeName)
	}

	if !v.queues.Exists(queueName) {
		return errors.Wrapf(types.CodeNotFound, "queue %q", queueName)
	}

	b := binding.Binding{Exchange: exchangeName, Queue: queueName, Key: key}
	if _, err := v.bindings.Unbind(b); err != nil {
		return err
	}

	v.dropUnusedExchanges([]binding.Binding{b})

	return nil
}

// Publish routes message through exchange and enqueues it to every matched queue
// Returns names of queues message was enqueued to
func (v *VirtualHost) Publish(exchangeName string, props message.Properties, body []byte) ([]string, error) {
	e, err := v.exchanges.Select(exchangeName)
	if err != nil {
		return nil, err
	}

	if err = topics.ValidateRoutingKey(props.RoutingKey); err != nil {
		return nil, err
	}

	msg := message.New(props, body)

	targets := v.bindings.Route(e, msg.RoutingKey())

	var routed []string

	for _, name := range targets {
		if _, err = v.queues.Enqueue(name, msg); err != nil {
			if types.CodeOf(err) == types.CodeNotFound {
				// deleted after routing
				continue
			}

			return routed, err
		}

		routed = append(routed, name)

		v.consumers.Dispatch(name)
	}

	v.metrics.Published(len(routed))

	if len(routed) == 0 {
		v.log.Debugw("message unroutable", "exchange", exchangeName, "routing_key", msg.RoutingKey(), "id", msg.ID())

		if v.reportUnroutable {
			return nil, errors.Wrapf(types.CodeNoRoute, "exchange %q routing key %q", exchangeName, msg.RoutingKey())
		}
	}

	return routed, nil
}

// Consume subscribes owner to queue
// connID identifies connection of owner for exclusive queues
func (v *VirtualHost) Consume(queueName string, owner consumer.Owner, connID string, tag string, autoAck bool, prefetch int) (*consumer.Consumer, error) {
	q, err := v.queues.Select(queueName)
	if err != nil {
		return nil, err
	}

	if q.Exclusive() && q.Owner() != "" && q.Owner() != connID {
		return nil, errors.Wrapf(types.CodeResourceLocked, "queue %q is exclusive to another connection", queueName)
	}

	return v.consumers.Add(queueName, owner, tag, autoAck, prefetch)
}

// Cancel consumer of owner
func (v *VirtualHost) Cancel(owner consumer.Owner, tag string) error {
	return v.consumers.Cancel(owner, tag)
}

// CancelAll consumers of owner, unacked messages are requeued
func (v *VirtualHost) CancelAll(owner consumer.Owner) []string {
	return v.consumers.CancelAll(owner)
}

// Ack message delivered to owner
func (v *VirtualHost) Ack(owner consumer.Owner, queueName string, messageID string) error {
	if err := v.consumers.Ack(owner, queueName, messageID); err != nil {
		return err
	}

	v.metrics.Acked()

	return nil
}

// ConnectionClosed deletes exclusive queues of connection
func (v *VirtualHost) ConnectionClosed(connID string) {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, name := range v.queues.Owned(connID) {
		if _, err := v.deleteQueue(name, false); err != nil {
			v.log.Errorw("couldn't delete exclusive queue", "queue", name, "error", err)
		}
	}
}

// Exchange by name
func (v *VirtualHost) Exchange(name string) (*exchange.Exchange, error) {
	return v.exchanges.Select(name)
}

// Queue by name
func (v *VirtualHost) Queue(name string) (*queue.Queue, error) {
	return v.queues.Select(name)
}

// ExchangeExists ...
func (v *VirtualHost) ExchangeExists(name string) bool {
	return v.exchanges.Exists(name)
}

// QueueExists ...
func (v *VirtualHost) QueueExists(name string) bool {
	return v.queues.Exists(name)
}

// Bindings of exchange
func (v *VirtualHost) Bindings(exchangeName string) []binding.Binding {
	return v.bindings.List(exchangeName)
}

// Consumers number of consumers subscribed to queue
func (v *VirtualHost) Consumers(queueName string) int {
	return v.consumers.Count(queueName)
}
