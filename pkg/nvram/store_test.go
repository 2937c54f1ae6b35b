package nvram

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/logger"
)

var testDefaults = map[string]string{"modem_technology": "gsm"}

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func TestFileStore_InitializesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(5554, 0))

	s, err := OpenFile(path, testDefaults, quietLogger())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if got := s.String("modem_technology", "cdma"); got != "gsm" {
		t.Fatalf("expected baseline technology gsm, got %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("nv file should exist after open: %v", err)
	}
	if !strings.Contains(strings.ToLower(string(data)), "modem_technology=gsm") {
		t.Fatalf("unexpected file content: %q", data)
	}
}

func TestFileStore_WriteBackAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nv", FileName(5554, 1))

	s, err := OpenFile(path, testDefaults, quietLogger())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if got := s.Int("preferred_mode", 15); got != 15 {
		t.Fatalf("Int default = %d", got)
	}
	// Defaults read back are persisted with the next explicit write.
	if err := s.SetString("smsc_address", "+123456789"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reloaded, err := OpenFile(path, testDefaults, quietLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Int("preferred_mode", 0); got != 15 {
		t.Errorf("preferred_mode after reload = %d, want 15", got)
	}
	if got := reloaded.String("smsc_address", ""); got != "+123456789" {
		t.Errorf("smsc_address after reload = %q", got)
	}
	if got := reloaded.String("modem_technology", ""); got != "gsm" {
		t.Errorf("modem_technology after reload = %q", got)
	}
}

func TestFileStore_UnreadableFileIsReinitialized(t *testing.T) {
	// A directory in place of the file cannot be read or written.
	path := filepath.Join(t.TempDir(), FileName(5554, 0))
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFile(path, testDefaults, quietLogger())
	if err != nil {
		t.Fatalf("OpenFile must recover from a bad file: %v", err)
	}
	if _, ok := s.Lookup("modem_technology"); !ok {
		t.Fatal("baseline key missing after recovery")
	}
}

func TestStore_IntFallsBackOnGarbage(t *testing.T) {
	s := NewMemory(map[string]string{"oper_index": "abc"}, quietLogger())
	if got := s.Int("oper_index", 1); got != 1 {
		t.Fatalf("Int on non-numeric value = %d, want default", got)
	}
	if v, _ := s.Lookup("oper_index"); v != "1" {
		t.Fatalf("default should be written back, got %q", v)
	}
}

func TestStore_LookupDoesNotWriteBack(t *testing.T) {
	s := NewMemory(testDefaults, quietLogger())
	if _, ok := s.Lookup("emergency_number_1"); ok {
		t.Fatal("unexpected key")
	}
	for _, k := range s.Keys() {
		if k == "emergency_number_1" {
			t.Fatal("Lookup must not create keys")
		}
	}
}

func TestStore_ExplicitWriteFlushes(t *testing.T) {
	b := &memoryBackend{}
	s := open(b, testDefaults, quietLogger())
	initial := b.flushes

	if err := s.SetInt("in_ecbm", 1); err != nil {
		t.Fatal(err)
	}
	if b.flushes != initial+1 {
		t.Fatalf("expected one flush per write, got %d", b.flushes-initial)
	}
	if b.saved["in_ecbm"] != "1" {
		t.Fatalf("flushed snapshot missing value: %v", b.saved)
	}
}

func TestDBStore_RoundTrip(t *testing.T) {
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "nv.db")}, quietLogger())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := database.NewNVRepository(db.GetDB())

	s := OpenDB(repo, StoreName(5554, 0), testDefaults, quietLogger())
	if err := s.SetInt("cdma_roaming_pref", 2); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	again := OpenDB(repo, StoreName(5554, 0), testDefaults, quietLogger())
	if got := again.Int("cdma_roaming_pref", 0); got != 2 {
		t.Fatalf("cdma_roaming_pref = %d, want 2", got)
	}
	if got := again.String("modem_technology", ""); got != "gsm" {
		t.Fatalf("modem_technology = %q, want gsm", got)
	}
}
