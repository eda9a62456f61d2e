package txn

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/store"
	"github.com/ValentinKolb/dTxn/rpc/transport"
)

// --------------------------------------------------------------------------
// Config
// --------------------------------------------------------------------------

// Config holds everything except the addressing of a transaction.
// A Config is a value: derive variants with With instead of mutating a shared one.
type Config struct {
	// Couch and DB are the defaults for requests that do not use URI/URL addressing
	Couch string
	DB    string

	// Store selects the embedded backend. Embedded is set together with it by
	// WithStore; an embedded config without a store is invalid.
	Store    store.IStore
	Embedded bool

	// Transport is used by the remote backend (nil = shared http transport)
	Transport transport.IDocClientTransport

	// Create allows creating the document if it does not exist
	Create bool
	// Timestamps maintains created_at and updated_at
	Timestamps bool
	// Now is the clock used for timestamps
	Now func() time.Time

	// MaxTries bounds the number of attempts
	MaxTries int
	// Delay is the base of the backoff: the retry after try n waits Delay * 2^n
	Delay time.Duration
	// MaxDelay caps the backoff (0 = no cap)
	MaxDelay time.Duration
	// After delays the first attempt
	After time.Duration
	// Timeout bounds a single run of the operation
	Timeout time.Duration

	// Observer receives the lifecycle events, on the transaction's own goroutine
	Observer func(Event)
	// Diff decides whether an operation changed the document
	Diff func(before, after doc.Document) doc.Changes
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Now:      time.Now,
		MaxTries: 5,
		Delay:    100 * time.Millisecond,
		Timeout:  15 * time.Second,
		Diff:     doc.Diff,
	}
}

// Option modifies a Config
type Option func(*Config)

// With returns a copy of the config with the options applied
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithCouch(couch, db string) Option {
	return func(c *Config) { c.Couch, c.DB = couch, db }
}

func WithStore(s store.IStore) Option {
	return func(c *Config) { c.Store, c.Embedded = s, true }
}

func WithTransport(t transport.IDocClientTransport) Option {
	return func(c *Config) { c.Transport = t }
}

func WithCreate(create bool) Option {
	return func(c *Config) { c.Create = create }
}

func WithTimestamps(timestamps bool) Option {
	return func(c *Config) { c.Timestamps = timestamps }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

func WithMaxTries(n int) Option {
	return func(c *Config) { c.MaxTries = n }
}

func WithDelay(d time.Duration) Option {
	return func(c *Config) { c.Delay = d }
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxDelay = d }
}

func WithAfter(d time.Duration) Option {
	return func(c *Config) { c.After = d }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

func WithObserver(fn func(Event)) Option {
	return func(c *Config) { c.Observer = fn }
}

func WithDiff(fn func(before, after doc.Document) doc.Changes) Option {
	return func(c *Config) { c.Diff = fn }
}

// validate checks the config and fills in nil funcs
func (c *Config) validate() error {
	switch {
	case c.MaxTries < 1:
		return fmt.Errorf("%w: max tries must be 1 or greater", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be greater than 0", ErrInvalidConfig)
	case c.Delay < 0:
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidConfig)
	case c.MaxDelay < 0:
		return fmt.Errorf("%w: max delay must not be negative", ErrInvalidConfig)
	case c.After < 0:
		return fmt.Errorf("%w: after must not be negative", ErrInvalidConfig)
	case c.Embedded && c.Store == nil:
		return fmt.Errorf("%w: the embedded backend requires a store", ErrInvalidConfig)
	}

	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Diff == nil {
		c.Diff = doc.Diff
	}
	return nil
}
