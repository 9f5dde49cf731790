package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Socket.validate(); err != nil {
		return err
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.QueueLimit < 0 {
			return errors.New("journal.queue_limit must be >= 0")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	return nil
}

func (s *SocketConfig) validate() error {
	if s.URL == "" {
		return errors.New("socket.url is required")
	}
	if _, err := url.Parse(s.URL); err != nil {
		return fmt.Errorf("socket.url: %w", err)
	}

	switch s.Transport {
	case "", "gorilla", "coder":
	default:
		return fmt.Errorf("socket.transport %q is not one of gorilla, coder", s.Transport)
	}
	switch s.PageScheme {
	case "", "http", "https":
	default:
		return fmt.Errorf("socket.page_scheme %q is not one of http, https", s.PageScheme)
	}
	switch s.Format {
	case "", "json":
	default:
		return fmt.Errorf("socket.format %q is not supported", s.Format)
	}

	if s.Reconnection.Attempts < 0 {
		return errors.New("socket.reconnection.attempts must be >= 0")
	}
	if s.Reconnection.Delay < 0 {
		return errors.New("socket.reconnection.delay must be >= 0")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
