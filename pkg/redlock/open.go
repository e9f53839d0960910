package redlock

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/pixperk/quorumlock/pkg/client"
	"github.com/pixperk/quorumlock/pkg/store"
)

// what every configured store kind provides
type backend interface {
	store.Backend
	store.Counter
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open connects to every store in cfg and to the counter store, and builds a
// coordinator over them. The returned func closes connections and files.
// On error everything opened so far is closed before returning.
// A counter given only a name shares the backend of the store with that name.
func Open(cfg Config, logger hclog.Logger, opts ...Option) (*Coordinator, func() error, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var closers []io.Closer
	closeStores := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i].Close())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Coordinator, func() error, error) {
		if cerr := closeStores(); cerr != nil {
			logger.Warn("closing stores after failed open", "error", cerr)
		}
		return nil, nil, err
	}

	opened := make(map[string]backend, len(cfg.Stores))
	stores := make([]*store.Client, 0, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		b, closer, err := openBackend(sc)
		if err != nil {
			return fail(fmt.Errorf("store %s: %w", sc.Name, err))
		}
		closers = append(closers, closer)
		opened[sc.Name] = b
		stores = append(stores, store.NewClient(sc.Name, b, logger))
	}

	counter, ok := opened[cfg.Counter.Name]
	if !ok || cfg.Counter.Kind != "" {
		b, closer, err := openBackend(cfg.Counter)
		if err != nil {
			return fail(fmt.Errorf("counter store: %w", err))
		}
		closers = append(closers, closer)
		counter = b
	}

	issuer, err := NewIssuer(store.NewCounterClient(cfg.Counter.Name, counter, logger), cfg.FencingScope, cfg.StoreTimeout, logger)
	if err != nil {
		return fail(err)
	}

	opts = append([]Option{WithLogger(logger)}, opts...)
	c, err := New(cfg, stores, issuer, opts...)
	if err != nil {
		return fail(err)
	}
	return c, closeStores, nil
}

func openBackend(sc StoreConfig) (backend, io.Closer, error) {
	switch sc.Kind {
	case KindRedis:
		b := store.DialRedis(sc.Address)
		return b, b, nil
	case KindGRPC:
		c, err := client.NewClient(sc.Address)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case KindBolt:
		b, err := store.OpenBoltBackend(sc.Address, nil)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case KindMemory:
		return store.NewMemoryBackend(), closerFunc(func() error { return nil }), nil
	case "":
		return nil, nil, errors.New("kind required")
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
}
