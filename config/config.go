/*
Package config loads the node's runtime settings.

Two sources exist. Local mode reads settings.yml from the resources
directory (or an explicit path). Remote mode, selected by the
CONSUL_ENABLED environment variable, fetches the same YAML document from
the Consul KV store under the service name published in application.yml.
Either way the document lands in viper and unmarshals into Config.
*/
package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/consul/api"
	"github.com/spf13/viper"
)

// Environment variables honored by the loader.
const (
	EnvConsulEnabled    = "CONSUL_ENABLED"
	EnvConsulHost       = "CONSUL_HOST"
	EnvConsulPort       = "CONSUL_PORT"
	EnvConsulDatacenter = "CONSUL_DATACENTER"
	EnvConsulToken      = "CONSUL_TOKEN"
	EnvResourcesDir     = "RESOURCES_DIRECTORY"
)

// Config is the node's full runtime configuration.
type Config struct {
	// Port is the framed-protocol TCP listen port.
	Port int `mapstructure:"port"`

	// Node names this node on the fabric. Defaults to the hostname.
	Node string `mapstructure:"node"`

	// AccountServiceURL selects the HTTP account client when set. Empty
	// means account lookups ride the bus request/reply subject.
	AccountServiceURL string `mapstructure:"account_service_url"`

	// PrivateKeyPath locates the RSA key PEM that decrypts bearer tokens.
	PrivateKeyPath string `mapstructure:"private_key_path"`

	Database Database `mapstructure:"database"`
	NATS     NATS     `mapstructure:"nats"`
	Health   Health   `mapstructure:"health"`

	Build BuildInformation `mapstructure:"-"`

	v      *viper.Viper
	remote bool
}

type Database struct {
	URI string `mapstructure:"uri"`
}

// NATS mirrors the settings block consumed by the bus client. Timeouts
// are whole seconds in the settings document.
type NATS struct {
	Servers              []string `mapstructure:"servers"`
	Verbose              bool     `mapstructure:"verbose"`
	AllowReconnect       bool     `mapstructure:"allow_reconnect"`
	ConnectTimeout       int      `mapstructure:"connect_timeout"`
	ReconnectTimeWait    int      `mapstructure:"reconnect_time_wait"`
	MaxReconnectAttempts int      `mapstructure:"max_reconnect_attempts"`
}

// Health configures the HTTP surface serving /health-check and
// /build-info.
type Health struct {
	Port int `mapstructure:"port"`
}

// LoadConfig reads application.yml, then the settings document from the
// source CONSUL_ENABLED selects. settingsPath overrides the local file
// location; empty means <resources>/settings.yml.
func LoadConfig(settingsPath string) (*Config, error) {
	build, err := LoadBuildInformation()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	remote := ConsulEnabled()
	if remote {
		if err := readRemote(v, build.Name); err != nil {
			return nil, err
		}
	} else if err := readLocal(v, settingsPath); err != nil {
		return nil, err
	}

	cfg := &Config{Build: build, v: v, remote: remote}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal settings: %w", err)
	}
	if cfg.Node == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("config: node unset and hostname unavailable: %w", err)
		}
		cfg.Node = host
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if len(c.NATS.Servers) == 0 {
		return fmt.Errorf("config: nats.servers is empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 9000)
	v.SetDefault("health.port", 9090)
	v.SetDefault("private_key_path", filepath.Join(ResourcesDirectory(), "keys", "private-rsa-key.pem"))

	v.SetDefault("nats.servers", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.verbose", false)
	v.SetDefault("nats.allow_reconnect", true)
	v.SetDefault("nats.connect_timeout", 2)
	v.SetDefault("nats.reconnect_time_wait", 2)
	v.SetDefault("nats.max_reconnect_attempts", 60)
}

func readLocal(v *viper.Viper, settingsPath string) error {
	if settingsPath == "" {
		settingsPath = filepath.Join(ResourcesDirectory(), "settings.yml")
	}
	v.SetConfigFile(settingsPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", settingsPath, err)
	}
	return nil
}

func readRemote(v *viper.Viper, key string) error {
	client, err := NewConsulClient()
	if err != nil {
		return fmt.Errorf("config: consul client: %w", err)
	}

	pair, _, err := client.KV().Get(key, nil)
	if err != nil {
		return fmt.Errorf("config: consul fetch %q: %w", key, err)
	}
	if pair == nil {
		return fmt.Errorf("config: no settings under consul key %q", key)
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(pair.Value)); err != nil {
		return fmt.Errorf("config: parse remote settings: %w", err)
	}
	return nil
}

// ConsulEnabled reports whether the process should talk to Consul for
// settings and service registration.
func ConsulEnabled() bool {
	enabled, err := strconv.ParseBool(os.Getenv(EnvConsulEnabled))
	return err == nil && enabled
}

// NewConsulClient builds an agent client from the CONSUL_* environment,
// falling back to the library defaults for anything unset.
func NewConsulClient() (*api.Client, error) {
	conf := api.DefaultConfig()
	if host := os.Getenv(EnvConsulHost); host != "" {
		port := os.Getenv(EnvConsulPort)
		if port == "" {
			port = "8500"
		}
		conf.Address = net.JoinHostPort(host, port)
	}
	if dc := os.Getenv(EnvConsulDatacenter); dc != "" {
		conf.Datacenter = dc
	}
	if token := os.Getenv(EnvConsulToken); token != "" {
		conf.Token = token
	}
	return api.NewClient(conf)
}

// ResourcesDirectory is where settings.yml, application.yml, key material
// and migrations live. Overridable for containerized layouts.
func ResourcesDirectory() string {
	if dir := os.Getenv(EnvResourcesDir); dir != "" {
		return dir
	}
	return "resources"
}

// MigrationsDirectory locates the SQL migration files.
func MigrationsDirectory() string {
	return filepath.Join(ResourcesDirectory(), "migrations")
}
