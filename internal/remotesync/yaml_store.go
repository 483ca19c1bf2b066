package remotesync

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stateful/mdedit/internal/filestore"
)

type mappingsFile struct {
	Mappings []Mapping `yaml:"mappings"`
}

// YAMLStore keeps mappings in a single YAML file. The file is rewritten
// on every change.
type YAMLStore struct {
	files *filestore.Store
	path  string

	mu       sync.Mutex
	loaded   bool
	mappings map[string]Mapping
}

func NewYAMLStore(files *filestore.Store, path string) *YAMLStore {
	return &YAMLStore{files: files, path: path}
}

func (s *YAMLStore) load() error {
	if s.loaded {
		return nil
	}
	s.mappings = make(map[string]Mapping)

	if !s.files.Exists(s.path) {
		s.loaded = true
		return nil
	}
	data, err := s.files.Read(s.path)
	if err != nil {
		return err
	}
	var f mappingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(err, "failed to parse mappings file %s", s.path)
	}
	for _, m := range f.Mappings {
		s.mappings[m.ID] = m
	}
	s.loaded = true
	return nil
}

func (s *YAMLStore) persist() error {
	data, err := yaml.Marshal(mappingsFile{Mappings: s.sorted()})
	if err != nil {
		return errors.WithStack(err)
	}
	return s.files.Write(s.path, data)
}

func (s *YAMLStore) sorted() []Mapping {
	result := make([]Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *YAMLStore) Get(id string) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return Mapping{}, err
	}
	m, ok := s.mappings[id]
	if !ok {
		return Mapping{}, ErrMappingNotFound
	}
	return m, nil
}

func (s *YAMLStore) FindByPath(localPath string) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return Mapping{}, err
	}
	for _, m := range s.mappings {
		if m.LocalPath == localPath {
			return m, nil
		}
	}
	return Mapping{}, ErrMappingNotFound
}

func (s *YAMLStore) Put(m Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	for id, other := range s.mappings {
		if id != m.ID && other.LocalPath == m.LocalPath {
			delete(s.mappings, id)
		}
	}
	s.mappings[m.ID] = m
	return s.persist()
}

func (s *YAMLStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if _, ok := s.mappings[id]; !ok {
		return nil
	}
	delete(s.mappings, id)
	return s.persist()
}

func (s *YAMLStore) List() ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.sorted(), nil
}

func (s *YAMLStore) Close() error { return nil }
