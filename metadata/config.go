package metadata

import (
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
)

const (
	// primaryHost is the fixed link-local address of the metadata server.
	primaryHost = "169.254.169.254"
	// secondaryHost is the DNS name of the metadata server. The trailing dot
	// keeps resolvers from walking search domains off-GCE.
	secondaryHost = "metadata.google.internal."

	// basePath is the API path segment appended to every metadata URL.
	basePath = "/computeMetadata/v1"

	// flavorHeader must be sent with every request and returned with every
	// response; its absence in a response means an impostor answered.
	flavorHeader = "Metadata-Flavor"
	flavorValue  = "Google"

	// defaultTimeout bounds each request when the process is not known to be
	// running on GCE. A real metadata server answers in milliseconds.
	defaultTimeout = 3 * time.Second
)

// Config holds the environment-driven settings of the metadata client.
// Environment variables are consolidated once at the process boundary via
// GetConsolidatedConfig; the client itself never reads the environment.
type Config struct {
	// IP and Host override the metadata server address. IP wins over Host,
	// an explicit address given to NewClient wins over both.
	IP   null.String `json:"ip" envconfig:"GCE_METADATA_IP"`
	Host null.String `json:"host" envconfig:"GCE_METADATA_HOST"`

	// Retries is the no-response retry budget of the availability probe.
	Retries null.Int `json:"retries" envconfig:"DETECT_GCP_RETRIES"`

	// DebugAuth, when set to anything non-empty, logs internal probe errors
	// that the availability verdict would otherwise swallow.
	DebugAuth null.String `json:"debugAuth" envconfig:"DEBUG_AUTH"`

	// Serverless runtime markers; any of them present means the process runs
	// on Google infrastructure even without a GCE DMI signature.
	CloudRunJob  null.String `json:"-" envconfig:"CLOUD_RUN_JOB"`
	FunctionName null.String `json:"-" envconfig:"FUNCTION_NAME"`
	KService     null.String `json:"-" envconfig:"K_SERVICE"`
}

// NewConfig creates a new Config instance with default values for some fields.
func NewConfig() Config {
	return Config{
		Retries: null.NewInt(0, false),
	}
}

// Apply saves non-zero config values from the passed config in the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.IP.Valid && cfg.IP.String != "" {
		c.IP = cfg.IP
	}
	if cfg.Host.Valid && cfg.Host.String != "" {
		c.Host = cfg.Host
	}
	if cfg.Retries.Valid {
		c.Retries = cfg.Retries
	}
	if cfg.DebugAuth.Valid {
		c.DebugAuth = cfg.DebugAuth
	}
	if cfg.CloudRunJob.Valid {
		c.CloudRunJob = cfg.CloudRunJob
	}
	if cfg.FunctionName.Valid {
		c.FunctionName = cfg.FunctionName
	}
	if cfg.KService.Valid {
		c.KService = cfg.KService
	}
	return c
}

// GetConsolidatedConfig combines the default config values with the
// environment variables from env and returns the final result.
func GetConsolidatedConfig(env map[string]string) (Config, error) {
	result := NewConfig()

	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, err
	}
	return result.Apply(envConfig), nil
}

// addressOverride returns the host override from the config, IP taking
// precedence over Host, and whether one was configured at all. A configured
// override disables dual-path racing: once the user has pinned an address,
// racing it against the fixed secondary would be misleading.
func (c Config) addressOverride() (string, bool) {
	if c.IP.Valid && c.IP.String != "" {
		return c.IP.String, true
	}
	if c.Host.Valid && c.Host.String != "" {
		return c.Host.String, true
	}
	return "", false
}

// debugEnabled reports whether DEBUG_AUTH was set to a non-empty value.
func (c Config) debugEnabled() bool {
	return c.DebugAuth.Valid && c.DebugAuth.String != ""
}

// serverless reports whether any of the serverless runtime markers is set.
func (c Config) serverless() bool {
	for _, v := range []null.String{c.CloudRunJob, c.FunctionName, c.KService} {
		if v.Valid && v.String != "" {
			return true
		}
	}
	return false
}
