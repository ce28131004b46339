package metadata

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"
)

//nolint:gochecknoglobals
var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide client, building it on first use from the
// environment. This is the one place the library reads the environment; code
// that wants control over config or logging should construct its own Client.
func Default() *Client {
	defaultOnce.Do(func() {
		config, err := GetConsolidatedConfig(envMap(os.Environ()))
		if err != nil {
			logrus.WithError(err).Warn("could not parse metadata configuration from environment, using defaults")
			config = NewConfig()
		}
		defaultClient = NewClient(logrus.StandardLogger(), "", config)
	})
	return defaultClient
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

// Instance fetches instance metadata with the process-wide client.
func Instance(ctx context.Context, opts ...GetOption) (*Value, error) {
	return Default().Instance(ctx, opts...)
}

// Project fetches project metadata with the process-wide client.
func Project(ctx context.Context, opts ...GetOption) (*Value, error) {
	return Default().Project(ctx, opts...)
}

// Available reports metadata server availability via the process-wide client.
func Available(ctx context.Context) bool {
	return Default().Available(ctx)
}

// ResetAvailabilityCache resets the process-wide availability verdict.
func ResetAvailabilityCache() {
	Default().ResetAvailabilityCache()
}

// SetResidency forces the process-wide residency verdict.
func SetResidency(v null.Bool) {
	Default().SetResidency(v)
}

// RequestTimeout returns the process-wide per-request timeout bound.
func RequestTimeout() time.Duration {
	return Default().RequestTimeout()
}
