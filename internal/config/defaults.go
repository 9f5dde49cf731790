package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport        = "gorilla"
	DefaultPageScheme       = "http"
	DefaultReconnectDelay   = 1 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultJournalTable     = "socket_journal"
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultQueueLimit       = 100000
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	s := &c.Socket
	if s.Transport == "" {
		s.Transport = DefaultTransport
	}
	if s.PageScheme == "" {
		s.PageScheme = DefaultPageScheme
	}
	if s.Reconnection.Delay == 0 {
		s.Reconnection.Delay = DefaultReconnectDelay
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.PingInterval == 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.PongTimeout == 0 {
		s.PongTimeout = DefaultPongTimeout
	}

	j := &c.Journal
	if j.Table == "" {
		j.Table = DefaultJournalTable
	}
	if j.BatchSize == 0 {
		j.BatchSize = DefaultBatchSize
	}
	if j.FlushInterval == 0 {
		j.FlushInterval = DefaultFlushInterval
	}
	if j.QueueLimit == 0 {
		j.QueueLimit = DefaultQueueLimit
	}
	applyDBDefaults(&j.Database)

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
