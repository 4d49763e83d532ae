// Package config loads and validates the chat server configuration from a
// YAML file, with ${VAR} environment expansion and defaults for everything
// optional.
package config

import "time"

// ServerConfig is the root configuration for a chat server instance.
type ServerConfig struct {
	Server   HTTPConfig `yaml:"server"`
	Chat     ChatConfig `yaml:"chat"`
	Database DBConfig   `yaml:"database"`
}

// HTTPConfig holds the listener and WebSocket endpoint settings.
type HTTPConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	WSPath          string        `yaml:"ws_path"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace"`
}

// ChatConfig holds routing and history settings.
type ChatConfig struct {
	HistorySize  int           `yaml:"history_size"`
	ReplayCount  int           `yaml:"replay_count"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// DBConfig holds the PostgreSQL connection. An empty host disables
// persistence entirely.
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

// Enabled reports whether a database was configured at all.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}
