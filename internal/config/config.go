package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/sockbridge/internal/connection"
	"github.com/rickgao/sockbridge/internal/journal"
	"github.com/rickgao/sockbridge/internal/router"
)

// Config is the root configuration for a sockwatch instance.
type Config struct {
	Socket  SocketConfig  `yaml:"socket"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// SocketConfig holds connection manager settings.
type SocketConfig struct {
	URL             string             `yaml:"url"`
	Protocol        string             `yaml:"protocol"`
	PageScheme      string             `yaml:"page_scheme"` // http or https; resolves //host addresses
	ConnectManually bool               `yaml:"connect_manually"`
	Format          string             `yaml:"format"`    // "json" or empty
	Transport       string             `yaml:"transport"` // gorilla or coder
	Reconnection    ReconnectionConfig `yaml:"reconnection"`
	Mutations       map[string]string  `yaml:"mutations"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongTimeout      time.Duration `yaml:"pong_timeout"`
}

// ReconnectionConfig holds the reconnect policy.
type ReconnectionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Attempts int           `yaml:"attempts"` // 0 = unbounded
	Delay    time.Duration `yaml:"delay"`
}

// JournalConfig holds the Postgres journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Table         string        `yaml:"table"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueLimit    int           `yaml:"queue_limit"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ManagerConfig converts the socket section.
func (s SocketConfig) ManagerConfig() connection.ManagerConfig {
	return connection.ManagerConfig{
		URL:                  s.URL,
		Protocol:             s.Protocol,
		Secure:               s.PageScheme == "https",
		ConnectManually:      s.ConnectManually,
		Reconnection:         s.Reconnection.Enabled,
		ReconnectionAttempts: s.Reconnection.Attempts,
		ReconnectionDelay:    s.Reconnection.Delay,
		Format:               s.Format,
	}
}

// TransportConfig converts the socket timeouts.
func (s SocketConfig) TransportConfig() connection.TransportConfig {
	return connection.TransportConfig{
		HandshakeTimeout: s.HandshakeTimeout,
		WriteTimeout:     s.WriteTimeout,
		PingInterval:     s.PingInterval,
		PongTimeout:      s.PongTimeout,
	}
}

// RouterConfig converts the routing settings.
func (s SocketConfig) RouterConfig() router.Config {
	return router.Config{
		Format:    s.Format,
		Mutations: s.Mutations,
	}
}

// WriterConfig converts the journal batching settings.
func (j JournalConfig) WriterConfig() journal.Config {
	return journal.Config{
		Table:         j.Table,
		BatchSize:     j.BatchSize,
		FlushInterval: j.FlushInterval,
		QueueLimit:    j.QueueLimit,
	}
}

// DBConfig converts the journal database settings.
func (j JournalConfig) DBConfig() journal.DBConfig {
	db := j.Database
	return journal.DBConfig{
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.Name,
		User:     db.User,
		Password: db.Password,
		SSLMode:  db.SSLMode,
		MaxConns: db.MaxConns,
		MinConns: db.MinConns,
	}
}

// SlogLevel returns the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
