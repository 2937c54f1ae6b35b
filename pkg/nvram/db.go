package nvram

import (
	"fmt"

	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/logger"
)

// StoreName is the database key of an instance's NV entries.
func StoreName(basePort, instance int) string {
	return fmt.Sprintf("%d-%d", basePort, instance)
}

type dbBackend struct {
	repo *database.NVRepository
	name string
}

// OpenDB opens the NV entries of one store in the database. A store with no
// rows is initialized with defaults and written immediately.
func OpenDB(repo *database.NVRepository, name string, defaults map[string]string, log *logger.Logger) Store {
	return open(&dbBackend{repo: repo, name: name}, defaults, log)
}

func (b *dbBackend) describe() string { return "db:" + b.name }

func (b *dbBackend) load() (map[string]string, error) {
	return b.repo.Load(b.name)
}

func (b *dbBackend) save(values map[string]string) error {
	if err := b.repo.Save(b.name, values); err != nil {
		return fmt.Errorf("failed to save nv store %s: %w", b.name, err)
	}
	return nil
}
