package nvram

import "github.com/dbehnke/modem-emu/pkg/logger"

// memoryBackend keeps the last flushed snapshot in memory.
type memoryBackend struct {
	saved   map[string]string
	flushes int
}

func (b *memoryBackend) describe() string { return "memory" }

func (b *memoryBackend) load() (map[string]string, error) {
	out := make(map[string]string, len(b.saved))
	for k, v := range b.saved {
		out[k] = v
	}
	return out, nil
}

func (b *memoryBackend) save(values map[string]string) error {
	b.saved = values
	b.flushes++
	return nil
}

// NewMemory returns a store that is never written to disk. Used by tests and
// by instances configured without persistence.
func NewMemory(defaults map[string]string, log *logger.Logger) Store {
	return open(&memoryBackend{}, defaults, log)
}
