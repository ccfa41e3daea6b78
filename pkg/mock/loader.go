package mock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Common errors for configuration file loading and saving.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

// LoadFile reads a configuration from a JSON or YAML file. The format is
// detected from the file extension (.yaml/.yml for YAML, JSON otherwise).
func LoadFile(path string) (*Configuration, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	if isYAMLPath(path) {
		return DecodeYAML(data)
	}
	return DecodeJSON(data)
}

// SaveFile writes a configuration to a file using an atomic rename. The
// format is determined by the file extension; parent directories are
// created as needed.
func SaveFile(path string, cfg *Configuration) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}

	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = EncodeYAML(cfg)
	} else {
		data, err = EncodeJSON(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
