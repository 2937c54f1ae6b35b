package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Emulator  EmulatorConfig  `mapstructure:"emulator"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transport TransportConfig `mapstructure:"transport"`
	DataNet   DataNetConfig   `mapstructure:"datanet"`
	Web       WebConfig       `mapstructure:"web"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// EmulatorConfig describes the hosted modem instances
type EmulatorConfig struct {
	BasePort    int  `mapstructure:"base_port"`    // Console port of the emulator, part of each phone number
	Instances   int  `mapstructure:"instances"`    // Number of modem instances hosted by this process
	TimeUpdates bool `mapstructure:"time_updates"` // Prepend %CTZV network time to +CSQ replies
}

// StorageConfig selects the persistence backend for modem NV data
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`       // file or sqlite
	Dir          string `mapstructure:"dir"`           // Directory for per-instance NV files
	DatabasePath string `mapstructure:"database_path"` // SQLite file for the sqlite backend and call history
	CallHistory  bool   `mapstructure:"call_history"`  // Record finished calls in the database
	// HistoryRetention drops calls older than this; zero keeps them forever
	HistoryRetention time.Duration `mapstructure:"history_retention"`
}

// TransportConfig holds the guest-facing AT transports
type TransportConfig struct {
	TCP       TCPConfig       `mapstructure:"tcp"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Serial    []SerialConfig  `mapstructure:"serial"`
}

// TCPConfig serves instance N on Port+N
type TCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// WebSocketConfig exposes /modems/{id}/at on the web server
type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SerialConfig binds one instance to a serial device (or pty)
type SerialConfig struct {
	Instance int    `mapstructure:"instance"`
	Device   string `mapstructure:"device"`
	Baud     int    `mapstructure:"baud"`
}

// DataNetConfig describes the host-side network bindings for PDP contexts
type DataNetConfig struct {
	Prefix  string   `mapstructure:"prefix"`  // Interface name prefix, e.g. rmnet.
	Count   int      `mapstructure:"count"`   // Number of interfaces
	Subnet  string   `mapstructure:"subnet"`  // Guest subnet; address N is host .100+N
	Gateway string   `mapstructure:"gateway"` // Gateway handed to the guest
	DNS     []string `mapstructure:"dns"`     // Up to two DNS servers
	Link    string   `mapstructure:"link"`    // log or exec
}

// WebConfig holds console API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/modem-emu")
	}

	viper.SetEnvPrefix("MODEM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("emulator.base_port", 5554)
	viper.SetDefault("emulator.instances", 1)
	viper.SetDefault("emulator.time_updates", true)

	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.dir", "./nvram")
	viper.SetDefault("storage.database_path", "modem-emu.db")
	viper.SetDefault("storage.call_history", false)
	viper.SetDefault("storage.history_retention", "720h")

	viper.SetDefault("transport.tcp.enabled", true)
	viper.SetDefault("transport.tcp.host", "127.0.0.1")
	viper.SetDefault("transport.tcp.port", 6554)
	viper.SetDefault("transport.websocket.enabled", true)

	viper.SetDefault("datanet.prefix", "rmnet.")
	viper.SetDefault("datanet.count", 4)
	viper.SetDefault("datanet.subnet", "10.0.2.0/24")
	viper.SetDefault("datanet.gateway", "10.0.2.2")
	viper.SetDefault("datanet.dns", []string{"10.0.2.3"})
	viper.SetDefault("datanet.link", "log")

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "127.0.0.1")
	viper.SetDefault("web.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
