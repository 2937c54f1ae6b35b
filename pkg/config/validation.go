package config

import (
	"fmt"
	"net"
	"strings"
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Emulator.BasePort <= 0 || cfg.Emulator.BasePort > 65535 {
		return fmt.Errorf("emulator.base_port must be between 1 and 65535")
	}
	// Phone numbers carry a single digit for the instance, see the modem package.
	if cfg.Emulator.Instances <= 0 || cfg.Emulator.Instances > 9 {
		return fmt.Errorf("emulator.instances must be between 1 and 9")
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case "file":
		if cfg.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case "sqlite":
		if cfg.Storage.DatabasePath == "" {
			return fmt.Errorf("storage.database_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be file or sqlite, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.CallHistory && cfg.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required when storage.call_history is enabled")
	}
	if cfg.Storage.HistoryRetention < 0 {
		return fmt.Errorf("storage.history_retention must not be negative")
	}

	if cfg.Transport.TCP.Enabled {
		last := cfg.Transport.TCP.Port + cfg.Emulator.Instances - 1
		if cfg.Transport.TCP.Port <= 0 || last > 65535 {
			return fmt.Errorf("transport.tcp.port range must be between 1 and 65535")
		}
	}
	for i, s := range cfg.Transport.Serial {
		if s.Device == "" {
			return fmt.Errorf("transport.serial[%d]: device is required", i)
		}
		if s.Instance < 0 || s.Instance >= cfg.Emulator.Instances {
			return fmt.Errorf("transport.serial[%d]: instance %d is not hosted", i, s.Instance)
		}
	}

	if cfg.DataNet.Count < 0 {
		return fmt.Errorf("datanet.count must not be negative")
	}
	if cfg.DataNet.Count > 0 {
		_, subnet, err := net.ParseCIDR(cfg.DataNet.Subnet)
		if err != nil {
			return fmt.Errorf("datanet.subnet: %w", err)
		}
		if subnet.IP.To4() == nil {
			return fmt.Errorf("datanet.subnet must be IPv4")
		}
		if net.ParseIP(cfg.DataNet.Gateway) == nil {
			return fmt.Errorf("datanet.gateway %q is not an IP address", cfg.DataNet.Gateway)
		}
		if len(cfg.DataNet.DNS) > 2 {
			return fmt.Errorf("datanet.dns accepts at most two servers")
		}
		for _, d := range cfg.DataNet.DNS {
			if net.ParseIP(d) == nil {
				return fmt.Errorf("datanet.dns %q is not an IP address", d)
			}
		}
	}
	if cfg.DataNet.Link != "log" && cfg.DataNet.Link != "exec" {
		return fmt.Errorf("datanet.link must be log or exec")
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}
	if cfg.Transport.WebSocket.Enabled && !cfg.Web.Enabled {
		return fmt.Errorf("transport.websocket requires web.enabled")
	}

	return nil
}
