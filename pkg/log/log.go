package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// The root logger is configured once at start-up via Setup. Components
// derive tagged children from it; verticle instances get registered
// loggers that undeploy drops again, so a redeploy churn of instances
// does not leak logger state.
var (
	mu        sync.RWMutex
	root      = newConsole(os.Stderr).Level(zerolog.InfoLevel)
	instances = make(map[string]zerolog.Logger)
)

func newConsole(out io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// Setup configures the root logger. level accepts zerolog's level names
// (debug, info, warn, error, ...); an unknown name is an error so a typo
// in the platform config cannot silently change verbosity. A nil out
// writes to stderr.
func Setup(level string, jsonOutput bool, out io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if out == nil {
		out = os.Stderr
	}

	var logger zerolog.Logger
	if jsonOutput {
		logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		logger = newConsole(out)
	}

	mu.Lock()
	root = logger.Level(lvl)
	mu.Unlock()
	return nil
}

// Root returns the configured root logger
func Root() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// WithComponent returns a child logger tagged with a subsystem name
func WithComponent(component string) zerolog.Logger {
	return Root().With().Str("component", component).Logger()
}

// Instance registers and returns the logger of one verticle instance,
// tagged with its deployment and instance index. The name is the
// holder's logger name; Drop releases it when the instance stops.
func Instance(name, deployment string, index int) zerolog.Logger {
	logger := Root().With().
		Str("deployment", deployment).
		Int("instance", index).
		Logger()

	mu.Lock()
	instances[name] = logger
	mu.Unlock()
	return logger
}

// Drop unregisters an instance logger during undeploy. Dropping an
// unknown name is a no-op.
func Drop(name string) {
	mu.Lock()
	delete(instances, name)
	mu.Unlock()
}

// ActiveInstances reports how many instance loggers are registered
func ActiveInstances() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(instances)
}
