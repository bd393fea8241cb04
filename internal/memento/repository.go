package memento

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every state file.
const FormatVersion = 1

// ErrStateNotFound is returned when no persisted state exists for a unit.
var ErrStateNotFound = errors.New("memento: state not found")

// File is the on-disk envelope around one unit's persisted state.
type File struct {
	Version int            `yaml:"version"`
	Unit    string         `yaml:"unit"`
	BuildID string         `yaml:"build_id"`
	Created time.Time      `yaml:"created"`
	Persist PersistedState `yaml:"persist"`
}

// StateStore persists captured state between unit builds.
type StateStore interface {
	Load(unit string) (File, error)
	Save(File) error
	Units() ([]string, error)
}

var _ StateStore = (*Repository)(nil)

// Repository stores one YAML state file per unit inside a directory.
type Repository struct {
	dir string
	now func() time.Time
}

// NewRepository creates a repository rooted at dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir, now: time.Now}
}

// Path is the state file location for unit.
func (r *Repository) Path(unit string) string {
	return filepath.Join(r.dir, unit+".yaml")
}

// Load reads and validates the persisted state for unit.
func (r *Repository) Load(unit string) (File, error) {
	if strings.TrimSpace(unit) == "" {
		return File{}, fmt.Errorf("memento: unit name is required")
	}
	data, err := os.ReadFile(r.Path(unit))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, ErrStateNotFound
		}
		return File{}, err
	}
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return File{}, fmt.Errorf("memento: decode %s: %w", r.Path(unit), err)
	}
	if file.Version != FormatVersion {
		return File{}, fmt.Errorf("memento: %s has unsupported version %d", r.Path(unit), file.Version)
	}
	if file.Persist == nil {
		file.Persist = PersistedState{}
	}
	if err := file.Persist.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

// Save validates and writes a state file. Missing version, build id and
// creation time are filled in.
func (r *Repository) Save(file File) error {
	if strings.TrimSpace(file.Unit) == "" {
		return fmt.Errorf("memento: unit name is required")
	}
	if err := file.Persist.Validate(); err != nil {
		return err
	}
	if file.Version == 0 {
		file.Version = FormatVersion
	}
	if file.BuildID == "" {
		file.BuildID = ulid.Make().String()
	}
	if file.Created.IsZero() {
		file.Created = r.now().UTC()
	}
	if file.Persist == nil {
		file.Persist = PersistedState{}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	encoded, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	tmp := r.Path(file.Unit) + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.Path(file.Unit))
}

// Units lists the units with a state file, sorted.
func (r *Repository) Units() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var units []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		units = append(units, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(units)
	return units, nil
}
