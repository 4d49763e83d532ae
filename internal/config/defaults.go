package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr      = ":8080"
	DefaultWSPath          = "/ws/chat/"
	DefaultWriteTimeout    = 5 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultPingInterval    = 30 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
	DefaultShutdownGrace   = 10 * time.Second
	DefaultHistorySize     = 100
	DefaultReplayCount     = 20
	DefaultStoreTimeout    = 5 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
)

func (c *ServerConfig) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PongTimeout == 0 {
		c.Server.PongTimeout = DefaultPongTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = DefaultShutdownGrace
	}

	if c.Chat.HistorySize == 0 {
		c.Chat.HistorySize = DefaultHistorySize
	}
	if c.Chat.ReplayCount == 0 {
		c.Chat.ReplayCount = DefaultReplayCount
	}
	if c.Chat.StoreTimeout == 0 {
		c.Chat.StoreTimeout = DefaultStoreTimeout
	}

	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}
}
