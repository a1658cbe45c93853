package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override the profile.
const EnvPrefix = "BYTEHOUSE_"

// ProfileFileName is the profile looked up when no path is given.
const ProfileFileName = "bytehouse.yaml"

// Load reads credentials from defaults, the YAML profile at path and
// BYTEHOUSE_* environment variables, in increasing precedence, then validates them.
// An empty path falls back to ProfileFileName in the working directory when it exists.
func Load(path string) (*Credentials, error) {
	k := koanf.New(".")

	d := DefaultCredentials()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"host":                 d.Host,
		"port":                 d.Port,
		"user":                 d.User,
		"schema":               d.Schema,
		"verify":               d.Verify,
		"connect_timeout":      d.ConnectTimeout,
		"send_receive_timeout": d.SendReceiveTimeout,
		"sync_request_timeout": d.SyncRequestTimeout,
		"compress_block_size":  d.CompressBlockSize,
		"check_exchange":       d.CheckExchange,
		"retries":              d.Retries,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(ProfileFileName); err == nil {
			path = ProfileFileName
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading profile %s: %w", path, err)
		}
	}

	// BYTEHOUSE_SEND_RECEIVE_TIMEOUT -> send_receive_timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var creds Credentials
	if err := k.Unmarshal("", &creds); err != nil {
		return nil, fmt.Errorf("unable to decode credentials: %w", err)
	}
	creds.ApplyDefaults()

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}
