package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const sqliteMemoryDSN = "file::memory:?cache=shared&_foreign_keys=1"

// sqliteDSN resolves the connection string for a sqlite store, creating the
// parent directory of a file-backed database.
func sqliteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return sqliteMemoryDSN, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	// the sweep and the request path write concurrently
	return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", filepath.ToSlash(path)), nil
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	host, port, err := serverAddress(cfg, "postgres", "localhost", 5432)
	if err != nil {
		return "", err
	}

	params := []string{
		"host=" + host,
		fmt.Sprintf("port=%d", port),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		params = append(params, "password="+cfg.Password)
	}
	params = append(params, optionPairs(cfg.Options, map[string]string{"sslmode": "disable"})...)
	return strings.Join(params, " "), nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	host, port, err := serverAddress(cfg, "mysql", "127.0.0.1", 3306)
	if err != nil {
		return "", err
	}

	credentials := cfg.User
	if cfg.Password != "" {
		credentials += ":" + cfg.Password
	}
	// join dates are compared in UTC
	opts := optionPairs(cfg.Options, map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "UTC",
	})
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", credentials, host, port, cfg.Name, strings.Join(opts, "&")), nil
}

func serverAddress(cfg Config, driver, defaultHost string, defaultPort int) (string, int, error) {
	if cfg.User == "" || cfg.Name == "" {
		return "", 0, errors.New(driver + " configuration requires user and database name")
	}
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	return host, port, nil
}

// optionPairs merges user options over the defaults and renders key=value
// pairs in key order so DSNs are stable.
func optionPairs(options, defaults map[string]string) []string {
	merged := make(map[string]string, len(options)+len(defaults))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range options {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+merged[key])
	}
	return pairs
}
