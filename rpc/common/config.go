package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Document server configuration struct
// --------------------------------------------------------------------------

// Engine selects the db.DocDB implementation backing every database of a server
type Engine string

const (
	EngineMaple Engine = "maple"
	EngineRedis Engine = "redis"
)

// RedisConfig holds the connection parameters for the redis engine
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds all configuration parameters for the document server.
type ServerConfig struct {
	// Databases created on startup (more can be created with PUT /{db})
	Databases []string

	// Storage engine and its parameters
	Engine Engine
	Redis  RedisConfig

	// Directory for <db>.snapshot files, loaded on start and written on shutdown.
	// Empty disables snapshots.
	SnapshotDir string

	// Per request timeout for store operations
	TimeoutSecond int64

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
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

	addSection("Document Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Storage")
	addField("Engine", string(c.Engine))
	if c.Engine == EngineRedis {
		addField("Redis Address", c.Redis.Addr)
		addField("Redis DB", strconv.Itoa(c.Redis.DB))
	}
	if c.SnapshotDir != "" {
		addField("Snapshot Directory", c.SnapshotDir)
	} else {
		addField("Snapshot Directory", "(disabled)")
	}

	addSection("Databases")
	for i, name := range c.Databases {
		addField(strconv.Itoa(i), name)
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
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
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
