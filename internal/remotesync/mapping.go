package remotesync

import (
	"github.com/pkg/errors"
)

var ErrMappingNotFound = errors.New("mapping not found")

// Mapping links a remote document to a local file.
type Mapping struct {
	ID        string `yaml:"id"`
	LocalPath string `yaml:"localPath"`
	Title     string `yaml:"title"`
	// LastSyncedUsec is the remote timestamp of the last pull or the local
	// time of the last push, in microseconds.
	LastSyncedUsec int64 `yaml:"lastSyncedUsec"`
}

// MappingStore persists mappings. Ids and local paths are unique.
type MappingStore interface {
	Get(id string) (Mapping, error)
	FindByPath(localPath string) (Mapping, error)
	// Put inserts or replaces the mapping with the same id.
	Put(m Mapping) error
	Delete(id string) error
	List() ([]Mapping, error)
	Close() error
}
