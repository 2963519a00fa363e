package client

import (
	"time"
)

// DefaultTimeout bounds dialing and handshakes when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config contains the connection parameters for any protocol.
// Fields that do not apply to a protocol are ignored by its client.
type Config struct {
	Protocol string `json:"protocol,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`

	// BaseURL is the WebDAV endpoint, for example http://host/webdav.
	BaseURL string `json:"base_url,omitempty"`
	// Path is the FTP base directory or the WebDAV HTTP path prefix.
	Path string `json:"path,omitempty"`

	// PrivateKey is a PEM encoded SSH key used in addition to the password.
	PrivateKey string `json:"private_key,omitempty"`
	// HostKeyFingerprint pins the SSH host key (SHA256:... form).
	HostKeyFingerprint string `json:"host_key_fingerprint,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// Clone returns a shallow copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	cp := *c
	return &cp
}

// PortOrDefault returns the configured port, or def when unset.
func (c *Config) PortOrDefault(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}

// TimeoutOrDefault returns the configured timeout, or DefaultTimeout when unset.
func (c *Config) TimeoutOrDefault() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// ParseSettings builds a Config from loosely typed settings, normalizing
// the accepted synonyms for every field into the canonical one.
func ParseSettings(settings map[string]interface{}) *Config {
	cfg := &Config{
		Protocol:           GetStringSetting(settings, "protocol", ""),
		Host:               GetStringSetting(settings, "host", ""),
		Port:               GetIntSetting(settings, "port", 0),
		Username:           firstString(settings, "username", "user"),
		Password:           firstString(settings, "password", "pass"),
		BaseURL:            firstString(settings, "baseURL", "baseUrl", "base_url", "url"),
		Path:               firstString(settings, "path", "prefix"),
		PrivateKey:         firstString(settings, "privateKey", "private_key"),
		HostKeyFingerprint: firstString(settings, "hostKey", "host_key_fingerprint"),
		Timeout:            GetDurationSetting(settings, "timeout", 0),
	}

	if creds, ok := settings["credentials"].(map[string]interface{}); ok {
		if cfg.Username == "" {
			cfg.Username = firstString(creds, "username", "user")
		}
		if cfg.Password == "" {
			cfg.Password = firstString(creds, "password", "pass")
		}
	}

	return cfg
}

func firstString(settings map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := GetStringSetting(settings, key, ""); v != "" {
			return v
		}
	}
	return ""
}

// GetStringSetting extracts a string setting from a settings map.
func GetStringSetting(settings map[string]interface{}, key, defaultValue string) string {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetIntSetting extracts an int setting from a settings map.
func GetIntSetting(settings map[string]interface{}, key string, defaultValue int) int {
	if val, ok := settings[key]; ok {
		switch num := val.(type) {
		case int:
			return num
		case int64:
			return int(num)
		case float64:
			return int(num)
		}
	}
	return defaultValue
}

// GetDurationSetting extracts a duration. Numbers are read as seconds,
// strings with time.ParseDuration.
func GetDurationSetting(settings map[string]interface{}, key string, defaultValue time.Duration) time.Duration {
	val, ok := settings[key]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
