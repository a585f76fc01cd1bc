package clickhouse

import (
	"fmt"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds ClickHouse configuration.
type ClientConfig struct {
	Addrs    []string
	Database string
	User     string
	Password string
	UseHTTP  bool
	// Compress enables LZ4 block compression on the native protocol.
	Compress bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration

	// server settings sent with every query
	MaxExecTime  time.Duration
	AsyncInsert  bool
	WaitForAsync bool
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
	}
}

// WithAddr adds a host:port pair. Repeat it for a cluster.
func WithAddr(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		if host != "" {
			c.Addrs = append(c.Addrs, fmt.Sprintf("%s:%d", host, port))
		}
	}
}

// WithDatabase names the database EnsureDatabase creates.
func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) {
		if database != "" {
			c.Database = database
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithProtocol switches to HTTP and toggles native LZ4 compression.
func WithProtocol(useHTTP, compress bool) ClientOption {
	return func(c *ClientConfig) {
		c.UseHTTP = useHTTP
		c.Compress = compress
	}
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			c.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithQueryLimits caps server-side execution time and configures async inserts.
func WithQueryLimits(maxExec time.Duration, asyncInsert, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.MaxExecTime = maxExec
		c.AsyncInsert = asyncInsert
		c.WaitForAsync = wait
	}
}
