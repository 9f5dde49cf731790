package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
socket:
  url: //chat.example.com/ws
  protocol: chat-v1
  page_scheme: https
  format: json
  transport: coder
  reconnection:
    enabled: true
    attempts: 5
    delay: 2s
  mutations:
    SOCKET_ONMESSAGE: receive
journal:
  enabled: true
  database:
    host: localhost
    port: 5432
    name: sockets
    user: journal
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Socket.URL != "//chat.example.com/ws" {
		t.Errorf("Socket.URL = %q", cfg.Socket.URL)
	}
	if cfg.Socket.Transport != "coder" {
		t.Errorf("Socket.Transport = %q, want coder", cfg.Socket.Transport)
	}
	if cfg.Socket.Reconnection.Delay != 2*time.Second {
		t.Errorf("Reconnection.Delay = %v, want 2s", cfg.Socket.Reconnection.Delay)
	}
	if cfg.Socket.Mutations["SOCKET_ONMESSAGE"] != "receive" {
		t.Errorf("Mutations = %v", cfg.Socket.Mutations)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Database.Name != "sockets" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SOCKET_HOST", "ws.internal:9000")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
socket:
  url: ws://${TEST_SOCKET_HOST}/events
journal:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Socket.URL != "ws://ws.internal:9000/events" {
		t.Errorf("Socket.URL = %q", cfg.Socket.URL)
	}
	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
	if _, err := Load(writeTempFile(t, "socket: [not, a, map")); err == nil {
		t.Error("Load of invalid yaml succeeded")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "socket:\n  url: ws://localhost:8080\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Socket.Transport != DefaultTransport {
		t.Errorf("Socket.Transport = %q, want default %q", cfg.Socket.Transport, DefaultTransport)
	}
	if cfg.Socket.Reconnection.Delay != DefaultReconnectDelay {
		t.Errorf("Reconnection.Delay = %v, want default %v", cfg.Socket.Reconnection.Delay, DefaultReconnectDelay)
	}
	if cfg.Socket.Reconnection.Enabled {
		t.Error("reconnection enabled by default")
	}
	if cfg.Journal.BatchSize != DefaultBatchSize {
		t.Errorf("Journal.BatchSize = %d, want default %d", cfg.Journal.BatchSize, DefaultBatchSize)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoadAndValidate(t *testing.T) {
	if _, err := LoadAndValidate(writeTempFile(t, "log:\n  level: info\n")); err == nil {
		t.Error("LoadAndValidate accepted a config without socket.url")
	}

	cfg, err := LoadAndValidate(writeTempFile(t, "socket:\n  url: ws://localhost:8080\n"))
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	if cfg.Socket.PageScheme != DefaultPageScheme {
		t.Errorf("PageScheme = %q", cfg.Socket.PageScheme)
	}
}

func TestValidate(t *testing.T) {
	validDB := DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 4, MinConns: 1}
	socket := SocketConfig{URL: "ws://localhost"}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing socket url",
			cfg:     Config{},
			wantErr: "socket.url is required",
		},
		{
			name:    "unknown transport",
			cfg:     Config{Socket: SocketConfig{URL: "ws://x", Transport: "nats"}},
			wantErr: `socket.transport "nats" is not one of gorilla, coder`,
		},
		{
			name:    "bad page scheme",
			cfg:     Config{Socket: SocketConfig{URL: "ws://x", PageScheme: "ftp"}},
			wantErr: `socket.page_scheme "ftp" is not one of http, https`,
		},
		{
			name:    "unsupported format",
			cfg:     Config{Socket: SocketConfig{URL: "ws://x", Format: "xml"}},
			wantErr: `socket.format "xml" is not supported`,
		},
		{
			name: "negative attempts",
			cfg: Config{Socket: SocketConfig{
				URL:          "ws://x",
				Reconnection: ReconnectionConfig{Attempts: -1},
			}},
			wantErr: "socket.reconnection.attempts must be >= 0",
		},
		{
			name: "journal missing host",
			cfg: Config{
				Socket:  socket,
				Journal: JournalConfig{Enabled: true, BatchSize: 10},
			},
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			cfg: Config{
				Socket: socket,
				Journal: JournalConfig{
					Enabled:   true,
					BatchSize: 10,
					Database:  DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 2, MinConns: 5},
				},
			},
			wantErr: "journal.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "journal batch size",
			cfg: Config{
				Socket:  socket,
				Journal: JournalConfig{Enabled: true, Database: validDB},
			},
			wantErr: "journal.batch_size must be >= 1",
		},
		{
			name:    "bad log level",
			cfg:     Config{Socket: socket, Log: LogConfig{Level: "loud"}},
			wantErr: `log.level "loud" is not one of debug, info, warn, error`,
		},
		{
			name:    "disabled journal is not checked",
			cfg:     Config{Socket: socket, Journal: JournalConfig{BatchSize: -1}},
			wantErr: "",
		},
		{
			name: "valid config",
			cfg: Config{
				Socket: SocketConfig{
					URL:          "//example.com/ws",
					PageScheme:   "https",
					Format:       "json",
					Transport:    "coder",
					Reconnection: ReconnectionConfig{Enabled: true, Attempts: 3, Delay: time.Second},
				},
				Journal: JournalConfig{Enabled: true, BatchSize: 100, Database: validDB},
				Log:     LogConfig{Level: "debug", Format: "json"},
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Socket = SocketConfig{
		URL:          "//example.com/ws",
		Protocol:     "chat",
		PageScheme:   "https",
		Format:       "json",
		Reconnection: ReconnectionConfig{Enabled: true, Attempts: 4, Delay: 3 * time.Second},
		Mutations:    map[string]string{"SOCKET_ONOPEN": "opened"},
		PingInterval: 15 * time.Second,
	}

	mc := cfg.Socket.ManagerConfig()
	if !mc.Secure || mc.Protocol != "chat" || !mc.Reconnection || mc.ReconnectionAttempts != 4 || mc.ReconnectionDelay != 3*time.Second {
		t.Errorf("ManagerConfig = %+v", mc)
	}
	if tc := cfg.Socket.TransportConfig(); tc.PingInterval != 15*time.Second {
		t.Errorf("TransportConfig = %+v", tc)
	}
	if rc := cfg.Socket.RouterConfig(); rc.Format != "json" || rc.Mutations["SOCKET_ONOPEN"] != "opened" {
		t.Errorf("RouterConfig = %+v", rc)
	}

	wc := cfg.Journal.WriterConfig()
	if wc.Table != DefaultJournalTable || wc.BatchSize != DefaultBatchSize {
		t.Errorf("WriterConfig = %+v", wc)
	}
	if db := cfg.Journal.DBConfig(); db.Port != DefaultDBPort || db.SSLMode != DefaultDBSSLMode {
		t.Errorf("DBConfig = %+v", db)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (LogConfig{Level: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
