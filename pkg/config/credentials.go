package config

import (
	"fmt"
	"time"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// Default connection settings.
const (
	DefaultHost               = "localhost"
	DefaultPort               = 19000
	DefaultUser               = "default"
	DefaultSchema             = "default"
	DefaultRetries            = 1
	DefaultConnectTimeout     = 10
	DefaultSendReceiveTimeout = 300
	DefaultSyncRequestTimeout = 5
	DefaultCompressBlockSize  = 1048576
)

// Credentials holds everything needed to open a connection.
// Timeouts are in seconds.
type Credentials struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Account  string `koanf:"account"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Database must be empty or equal to Schema; the engine has no separate
	// database level above schemas.
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`

	Warehouse      string `koanf:"warehouse"`
	Cluster        string `koanf:"cluster"`
	DatabaseEngine string `koanf:"database_engine"`
	ClusterMode    bool   `koanf:"cluster_mode"`

	Secure bool `koanf:"secure"`
	Verify bool `koanf:"verify"`

	ConnectTimeout     int `koanf:"connect_timeout"`
	SendReceiveTimeout int `koanf:"send_receive_timeout"`
	SyncRequestTimeout int `koanf:"sync_request_timeout"`

	CompressBlockSize int    `koanf:"compress_block_size"`
	Compression       string `koanf:"compression"`

	CheckExchange  bool           `koanf:"check_exchange"`
	CustomSettings map[string]any `koanf:"custom_settings"`
	Retries        int            `koanf:"retries"`
}

// DefaultCredentials returns credentials populated with the defaults.
func DefaultCredentials() Credentials {
	return Credentials{
		Host:               DefaultHost,
		Port:               DefaultPort,
		User:               DefaultUser,
		Schema:             DefaultSchema,
		Verify:             true,
		ConnectTimeout:     DefaultConnectTimeout,
		SendReceiveTimeout: DefaultSendReceiveTimeout,
		SyncRequestTimeout: DefaultSyncRequestTimeout,
		CompressBlockSize:  DefaultCompressBlockSize,
		CheckExchange:      true,
		Retries:            DefaultRetries,
	}
}

// ApplyDefaults fills zero-valued fields that have a non-zero default.
// Boolean fields are left alone.
func (c *Credentials) ApplyDefaults() {
	d := DefaultCredentials()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.User == "" {
		c.User = d.User
	}
	if c.Schema == "" {
		c.Schema = d.Schema
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.SendReceiveTimeout == 0 {
		c.SendReceiveTimeout = d.SendReceiveTimeout
	}
	if c.SyncRequestTimeout == 0 {
		c.SyncRequestTimeout = d.SyncRequestTimeout
	}
	if c.CompressBlockSize == 0 {
		c.CompressBlockSize = d.CompressBlockSize
	}
}

// Validate rejects credential combinations before any connection attempt.
// A validated Credentials has an empty Database.
func (c *Credentials) Validate() error {
	if c.Database != "" && c.Database != c.Schema {
		return dberror.NewConfigurationError(fmt.Sprintf(
			"schema: %s, database: %s, cluster: %s: database must be omitted or have the same value as schema",
			c.Schema, c.Database, c.Cluster))
	}
	c.Database = ""
	if c.Host == "" {
		return dberror.NewConfigurationError("host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return dberror.NewConfigurationError(fmt.Sprintf("invalid port %d", c.Port))
	}
	if c.Retries < 0 {
		return dberror.NewConfigurationError(fmt.Sprintf("invalid retries %d", c.Retries))
	}
	switch c.Compression {
	case "", "lz4", "zstd", "gzip", "deflate", "br":
	default:
		return dberror.NewConfigurationError(fmt.Sprintf("unsupported compression %q", c.Compression))
	}
	return nil
}

// Replicated reports whether writes must use replicated quorum settings.
func (c *Credentials) Replicated() bool {
	return c.ClusterMode || c.DatabaseEngine == EngineReplicated
}

// ConnectionSettings returns the server settings sent with every query:
// the custom settings plus the replicated quorum settings when required.
func (c *Credentials) ConnectionSettings() map[string]any {
	settings := make(map[string]any, len(c.CustomSettings)+2)
	for k, v := range c.CustomSettings {
		settings[k] = v
	}
	if c.Replicated() {
		settings["database_replicated_enforce_synchronous_settings"] = "1"
		settings["insert_quorum"] = "auto"
	}
	return settings
}

// Address returns host:port.
func (c *Credentials) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConnectTimeoutDuration returns the dial timeout.
func (c *Credentials) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// SendReceiveTimeoutDuration returns the socket read/write timeout.
func (c *Credentials) SendReceiveTimeoutDuration() time.Duration {
	return time.Duration(c.SendReceiveTimeout) * time.Second
}

// SyncRequestTimeoutDuration returns the timeout for synchronous requests such as ping.
func (c *Credentials) SyncRequestTimeoutDuration() time.Duration {
	return time.Duration(c.SyncRequestTimeout) * time.Second
}
