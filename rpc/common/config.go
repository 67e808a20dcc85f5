package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultQueueSize      = 32
	DefaultMaxLineLength  = 64 * 1024
	DefaultBufferSize     = 4 * 1024
	DefaultTimeoutSecond  = 0 // connections may stay idle
	DefaultTCPKeepAlive   = 30
	DefaultRateBurst      = 100
	DefaultServerEndpoint = "127.0.0.1:6142"
)

// --------------------------------------------------------------------------
// Socket configuration (shared by server and client)
// --------------------------------------------------------------------------

// SocketConf holds the buffer sizes used for every connection.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds the TCP specific socket options. They are ignored by the unix transport.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the OS default
	TCPLingerSec int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerTransportConfig struct {
	// Endpoint is host:port for tcp or the socket path for unix
	Endpoint string
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	Transport ServerTransportConfig

	// store parameters
	QueueSize int

	// connection parameters
	TimeoutSecond int64 // read/write deadline per request, 0 disables it
	MaxLineLength int   // longest accepted request line in bytes
	RateLimit     float64
	RateBurst     int

	// metrics endpoint (host:port), empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogFile   string
}

// DefaultServerConfig returns the configuration used when no flag, env var or config file says otherwise.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: ServerTransportConfig{
			Endpoint: DefaultServerEndpoint,
			SocketConf: SocketConf{
				WriteBufferSize: DefaultBufferSize,
				ReadBufferSize:  DefaultBufferSize,
			},
			TCPConf: TCPConf{
				TCPNoDelay:      true,
				TCPKeepAliveSec: DefaultTCPKeepAlive,
				TCPLingerSec:    -1,
			},
		},
		QueueSize:     DefaultQueueSize,
		TimeoutSecond: DefaultTimeoutSecond,
		MaxLineLength: DefaultMaxLineLength,
		RateBurst:     DefaultRateBurst,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Timeout returns the per request deadline as a duration.
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// Validate checks the configuration for values the server can't work with.
func (c *ServerConfig) Validate() error {
	if c.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("max line length must be at least 1, got %d", c.MaxLineLength)
	}
	if c.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.TimeoutSecond)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1 when a rate limit is set, got %d", c.RateBurst)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s. must be one of console, json", c.LogFormat)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Line Server")
	addField("Endpoint", c.Transport.Endpoint)
	if c.TimeoutSecond > 0 {
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	} else {
		addField("Timeout", "disabled")
	}
	addField("Max Line Length", fmt.Sprintf("%d bytes", c.MaxLineLength))
	if c.RateLimit > 0 {
		addField("Rate Limit", fmt.Sprintf("%g req/s per host (burst %d)", c.RateLimit, c.RateBurst))
	} else {
		addField("Rate Limit", "disabled")
	}

	addSection("Socket")
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	if c.Transport.TCPLingerSec >= 0 {
		addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	} else {
		addField("TCP Linger", "os default")
	}

	addSection("Store")
	addField("Queue Size", strconv.Itoa(c.QueueSize))

	addSection("Metrics")
	if c.MetricsEndpoint != "" {
		addField("Endpoint", "http://"+c.MetricsEndpoint+"/metrics")
	} else {
		addField("Endpoint", "disabled")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Log Format", c.LogFormat)
	if c.LogFile != "" {
		addField("Log File", c.LogFile)
	} else {
		addField("Log File", "stdout")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	MaxLineLength int
	Transport     ClientTransportConfig
}

// Timeout returns the per request timeout as a duration.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
