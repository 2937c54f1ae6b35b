package nvram

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/spf13/viper"
)

// FileName returns the NV file name of an instance, e.g.
// modem-nv-ram-5554-0.env.
func FileName(basePort, instance int) string {
	return fmt.Sprintf("modem-nv-ram-%d-%d.env", basePort, instance)
}

// fileBackend stores KEY=value lines through viper's dotenv codec.
type fileBackend struct {
	path string
}

// OpenFile opens the dotenv file at path. A missing or unreadable file is
// replaced by defaults and written immediately.
func OpenFile(path string, defaults map[string]string, log *logger.Logger) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create nv directory: %w", err)
		}
	}
	return open(&fileBackend{path: path}, defaults, log), nil
}

func (b *fileBackend) describe() string { return b.path }

func (b *fileBackend) load() (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(b.path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		// viper lower-cases keys; the dotenv writer upper-cases them.
		values[strings.ToLower(key)] = v.GetString(key)
	}
	return values, nil
}

func (b *fileBackend) save(values map[string]string) error {
	v := viper.New()
	v.SetConfigType("env")
	for k, val := range values {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(b.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.path, err)
	}
	return nil
}
