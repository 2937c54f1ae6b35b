package registry

import (
	"path/filepath"

	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/nvram"
)

// FileStores keeps each instance's settings in its own dotenv file under dir.
func FileStores(dir string, basePort int, log *logger.Logger) StoreOpener {
	return func(instance int) (nvram.Store, error) {
		path := filepath.Join(dir, nvram.FileName(basePort, instance))
		return nvram.OpenFile(path, modem.StoreDefaults(), log)
	}
}

// DBStores keeps every instance's settings in the nv_entries table.
func DBStores(repo *database.NVRepository, basePort int, log *logger.Logger) StoreOpener {
	return func(instance int) (nvram.Store, error) {
		return nvram.OpenDB(repo, nvram.StoreName(basePort, instance), modem.StoreDefaults(), log), nil
	}
}

// MemoryStores keeps settings for the life of the process only.
func MemoryStores(log *logger.Logger) StoreOpener {
	return func(int) (nvram.Store, error) {
		return nvram.NewMemory(modem.StoreDefaults(), log), nil
	}
}
