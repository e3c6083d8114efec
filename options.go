package sqlitekv

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SynchronousMode selects the engine's durability mode.
type SynchronousMode string

const (
	SynchronousOff    SynchronousMode = "OFF"
	SynchronousNormal SynchronousMode = "NORMAL"
	SynchronousFull   SynchronousMode = "FULL"
)

// config holds construction-time settings. Nothing here is re-configurable
// after Open.
type config struct {
	synchronous SynchronousMode
	busyTimeout time.Duration
	logger      *slog.Logger
	clock       Clock
}

func defaultConfig() config {
	return config{
		synchronous: SynchronousNormal,
		busyTimeout: 5 * time.Second,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:       systemClock,
	}
}

// Option customizes store construction.
type Option func(*config)

// WithSynchronous sets the engine durability mode.
// Defaults to SynchronousNormal.
func WithSynchronous(mode SynchronousMode) Option {
	return func(c *config) {
		if mode != "" {
			c.synchronous = mode
		}
	}
}

// WithBusyTimeout bounds how long an individual statement blocks on
// engine-level lock contention from another OS process before failing
// with a ContentionError. Defaults to 5 seconds.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.busyTimeout = d
		}
	}
}

// WithLogger sets the logger. Decode mismatches on the read path are
// logged here and the affected rows skipped. Defaults to a discard
// logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used by the expiring cache variant
// for expiry computation, read filtering, and pruning. Production code
// should leave this at the default wall clock; tests pin it for
// deterministic expiry.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Options is the file-loadable subset of construction settings.
type Options struct {
	Synchronous       string `yaml:"synchronous"`
	BusyTimeoutMS     int    `yaml:"busy_timeout_ms"`
	DefaultTTLSeconds int    `yaml:"default_ttl_seconds"`
}

// LoadOptions reads an Options YAML file.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("load options: %w", err)
	}
	var o Options
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return Options{}, fmt.Errorf("load options: %w", err)
	}
	return o, nil
}

// Apply converts the loaded settings into construction options. The
// default TTL is not an Option; pass DefaultTTL to OpenCache directly.
func (o Options) Apply() []Option {
	var opts []Option
	if o.Synchronous != "" {
		opts = append(opts, WithSynchronous(SynchronousMode(o.Synchronous)))
	}
	if o.BusyTimeoutMS > 0 {
		opts = append(opts, WithBusyTimeout(time.Duration(o.BusyTimeoutMS)*time.Millisecond))
	}
	return opts
}

// DefaultTTL returns the configured default time-to-live for the cache
// variant, or zero if unset.
func (o Options) DefaultTTL() time.Duration {
	return time.Duration(o.DefaultTTLSeconds) * time.Second
}
