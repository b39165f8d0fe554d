package gatekeeper

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".kickhost", "sources.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the decisions file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// FileStore persists source approval decisions to a YAML file.
type FileStore struct {
	config fileStoreConfig
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed decision store.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

type decisionsFile struct {
	Sources map[string]bool `yaml:"sources"`
}

// Load implements Store. A missing file means no decisions yet.
func (s *FileStore) Load() (map[string]bool, error) {
	data, err := os.ReadFile(s.config.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("read decisions file: %w", err)
	}
	var file decisionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse decisions file: %w", err)
	}
	if file.Sources == nil {
		file.Sources = map[string]bool{}
	}
	return file.Sources, nil
}

// Save implements Store.
func (s *FileStore) Save(decisions map[string]bool) error {
	data, err := yaml.Marshal(decisionsFile{Sources: decisions})
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.config.path), s.config.dirPerm); err != nil {
		return fmt.Errorf("create decisions directory: %w", err)
	}
	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("write decisions file: %w", err)
	}
	return nil
}
