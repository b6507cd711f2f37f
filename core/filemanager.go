package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FileManager provides methods for file and directory management.
type FileManager struct {
	rootDir string
}

// NewFileManager creates a new FileManager with the given root directory.
func NewFileManager(rootDir string) *FileManager {
	return &FileManager{rootDir: rootDir}
}

// GetPath returns the full path of a file or directory in the project.
func (fm *FileManager) GetPath(path string) string {
	return filepath.Join(fm.rootDir, path)
}

// PathExists returns true if the path exists, false otherwise.
func (fm *FileManager) PathExists(path string) bool {
	_, err := os.Stat(fm.GetPath(path))
	return !os.IsNotExist(err)
}

// CreateDirectory creates a directory if it does not exist.
func (fm *FileManager) CreateDirectory(directory string) error {
	if !fm.PathExists(directory) {
		return os.MkdirAll(fm.GetPath(directory), 0o755)
	}
	return nil
}

// ReadFile reads the contents of a file and returns the data.
func (fm *FileManager) ReadFile(path string) ([]byte, error) {
	if !fm.PathExists(path) {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(fm.GetPath(path))
}

// LoadJSONFile loads a JSON file and unmarshals it into the provided interface.
func (fm *FileManager) LoadJSONFile(path string, v any) error {
	data, err := fm.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", path, err)
	}
	return nil
}

// SaveJSONFile marshals the provided interface and saves it to a JSON file.
func (fm *FileManager) SaveJSONFile(data any, path string) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data to JSON for %s: %w", path, err)
	}
	if err := fm.CreateDirectory(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(fm.GetPath(path), jsonData, 0o644)
}

// SaveLines writes lines to path, one per line, replacing any previous file.
func (fm *FileManager) SaveLines(path string, lines []string) error {
	if err := fm.CreateDirectory(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(fm.GetPath(path), []byte(b.String()), 0o644)
}

// SaveCompressedLines writes lines to path as a zstd stream.
func (fm *FileManager) SaveCompressedLines(path string, lines []string) error {
	if err := fm.CreateDirectory(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(fm.GetPath(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	w := bufio.NewWriter(enc)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = enc.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return f.Close()
}

// ReadLines reads a file written by SaveLines or SaveCompressedLines. Files ending in
// .zst are decompressed.
func (fm *FileManager) ReadLines(path string) ([]string, error) {
	f, err := os.Open(fm.GetPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		scanner = bufio.NewScanner(dec)
	}

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
