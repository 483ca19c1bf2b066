package config

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrRootConfigNotFound = errors.New("root configuration file not found")

// Loader finds and parses configuration files in a file system.
type Loader struct {
	// root is the directory holding the root configuration file,
	// typically the working directory.
	root fs.FS

	// name and ext form the configuration file name, for example
	// "mdedit" and "yaml".
	name string
	ext  string

	logger *zap.Logger
}

type LoaderOption func(*Loader)

func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(name, ext string, root fs.FS, opts ...LoaderOption) *Loader {
	if name == "" {
		panic("config name is not set")
	}

	l := &Loader{
		root: root,
		name: name,
		ext:  ext,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	return l
}

func (l *Loader) fileName() string {
	if l.ext == "" {
		return l.name
	}
	return l.name + "." + l.ext
}

func (l *Loader) RootConfig() ([]byte, error) {
	data, err := fs.ReadFile(l.root, l.fileName())
	if err != nil {
		return nil, ErrRootConfigNotFound
	}
	return data, nil
}

// Load returns the configuration that applies to name, a file or a
// directory relative to the root. Configuration files found on the way
// from the root to name are applied in order, so nested files override
// their parents. Without any file the defaults are returned.
func (l *Loader) Load(name string) (*Config, error) {
	chain, err := l.FindConfigChain(name)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	for _, data := range chain {
		cfg, err = parseYAML(cfg, data)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (l *Loader) FindConfigChain(name string) ([][]byte, error) {
	paths, err := l.findConfigFilesOnPath(name)
	if err != nil {
		return nil, err
	}
	return l.readFiles(paths...)
}

func (l *Loader) findConfigFilesOnPath(name string) (result []string, _ error) {
	name, err := l.parsePath(name)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("finding config files on path", zap.String("name", name))

	fileName := l.fileName()

	_, err = fs.Stat(l.root, fileName)
	if err == nil {
		result = append(result, fileName)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	fragments := strings.Split(filepath.ToSlash(name), "/")
	if len(fragments) > 0 && fragments[0] == "." {
		fragments = fragments[1:]
	}

	curDir := ""
	for _, fragment := range fragments {
		// fs.FS paths are always slash separated.
		curDir = path.Join(curDir, fragment)

		configPath := path.Join(curDir, fileName)
		_, err := fs.Stat(l.root, configPath)
		if err == nil {
			result = append(result, configPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("failed to stat nested config", zap.String("path", configPath), zap.Error(err))
			return nil, err
		}
	}

	l.logger.Debug("found config files on path", zap.String("name", name), zap.Strings("files", result))

	return result, nil
}

func (l *Loader) parsePath(name string) (string, error) {
	if name == "" {
		name = "."
	}

	info, err := fs.Stat(l.root, filepath.ToSlash(name))
	if err != nil {
		return "", errors.Wrapf(err, "failed to get the path info for %q", name)
	}

	if info.IsDir() {
		return filepath.Clean(name), nil
	}
	return filepath.Dir(name), nil
}

func (l *Loader) readFiles(paths ...string) (result [][]byte, _ error) {
	for _, path := range paths {
		data, err := fs.ReadFile(l.root, path)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}
