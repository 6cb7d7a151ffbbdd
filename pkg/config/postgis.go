package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Legacy environment variables read when no PostgreSQL DSN is configured.
const (
	EnvPostGISHost     = "POSTGIS_HOST"
	EnvPostGISPort     = "POSTGIS_PORT"
	EnvPostGISUsername = "POSTGIS_USERNAME"
	EnvPostGISPassword = "POSTGIS_PASSWORD"
	EnvPostGISDatabase = "POSTGIS_DATABASE"
	EnvPostGISDebug    = "POSTGIS_DEBUG"
)

// ConfigurationError reports required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// PostgresDSN returns the configured DSN, or one built from the POSTGIS_*
// environment variables. lookup defaults to os.LookupEnv.
func PostgresDSN(cfg StorageConfig, lookup func(string) (string, bool)) (string, error) {
	if cfg.PostgresDSN != "" {
		return cfg.PostgresDSN, nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := map[string]string{}
	missing := []string{}
	for _, key := range []string{EnvPostGISHost, EnvPostGISPort, EnvPostGISUsername, EnvPostGISPassword, EnvPostGISDatabase} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = strings.TrimSpace(v)
	}
	if len(missing) > 0 {
		return "", &ConfigurationError{Missing: append([]string{"storage.postgres_dsn"}, missing...)}
	}

	if _, err := strconv.Atoi(values[EnvPostGISPort]); err != nil {
		return "", &ConfigurationError{Missing: []string{EnvPostGISPort + " (not a port number)"}}
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(values[EnvPostGISUsername], values[EnvPostGISPassword]),
		Host:   net.JoinHostPort(values[EnvPostGISHost], values[EnvPostGISPort]),
		Path:   "/" + values[EnvPostGISDatabase],
	}
	return u.String(), nil
}

// LegacyDebug reports whether POSTGIS_DEBUG asks for query logging.
func LegacyDebug(lookup func(string) (string, bool)) bool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(EnvPostGISDebug)
	if !ok {
		return false
	}
	debug, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && debug
}
