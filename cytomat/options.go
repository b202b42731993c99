package cytomat

import (
	"time"

	"github.com/moffa90/go-cytomat/protocol"
)

// DefaultTimeout is the response timeout used when no option overrides it.
const DefaultTimeout = 5 * time.Second

// Config holds the engine configuration.
type Config struct {
	// Logger is used for logging exchanges (optional)
	Logger Logger

	// CallHook is called after every exchange (optional)
	CallHook CallHook

	// Timeout is the default response timeout
	Timeout time.Duration

	// CommandTimeouts overrides Timeout per command name
	CommandTimeouts map[string]time.Duration

	// Framing holds the frame markers and field delimiter
	Framing protocol.Framing
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Framing: protocol.DefaultFraming,
	}
}

// timeoutFor returns the configured timeout for a command.
func (c Config) timeoutFor(name string) time.Duration {
	if d, ok := c.CommandTimeouts[name]; ok {
		return d
	}
	return c.Timeout
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithLogger sets a logger for engine operations.
//
// Example:
//
//	engine := cytomat.New(port, cytomat.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithCallHook sets a function called after every exchange.
func WithCallHook(hook CallHook) Option {
	return func(c *Config) {
		c.CallHook = hook
	}
}

// WithTimeout sets the default response timeout. Non-positive values are ignored.
//
// Example:
//
//	engine := cytomat.New(port, cytomat.WithTimeout(2*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithCommandTimeout sets the response timeout for a single command.
// Plate moves can take far longer than status queries.
//
// Example:
//
//	engine := cytomat.New(port,
//	    cytomat.WithCommandTimeout(protocol.CmdTransferToStorage, 60*time.Second),
//	)
func WithCommandTimeout(name string, timeout time.Duration) Option {
	return func(c *Config) {
		if timeout <= 0 {
			return
		}
		if c.CommandTimeouts == nil {
			c.CommandTimeouts = make(map[string]time.Duration)
		}
		c.CommandTimeouts[name] = timeout
	}
}

// WithFraming sets the frame markers and delimiter. Invalid framings are ignored.
func WithFraming(f protocol.Framing) Option {
	return func(c *Config) {
		if f.Validate() == nil {
			c.Framing = f
		}
	}
}
