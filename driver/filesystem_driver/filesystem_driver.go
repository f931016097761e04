package filesystem_driver

import (
	"os"
	"path/filepath"

	"pkgdeploy-cli/port/filesystem_port"
)

// FileSystemDriver implements file system operations
type FileSystemDriver struct{}

// Ensure FileSystemDriver implements FileSystemPort interface
var _ filesystem_port.FileSystemPort = (*FileSystemDriver)(nil)

// NewFileSystemDriver creates a new file system driver
func NewFileSystemDriver() *FileSystemDriver {
	return &FileSystemDriver{}
}

// FileExists checks if a file exists
func (f *FileSystemDriver) FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func (f *FileSystemDriver) DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ReadFile reads the contents of a file
func (f *FileSystemDriver) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a file
func (f *FileSystemDriver) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// WriteFileAtomic durably writes data via temp file, fsync and rename.
// A concurrent reader sees either the previous or the new content.
func (f *FileSystemDriver) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// AppendLine appends a line to a file, creating it if needed
func (f *FileSystemDriver) AppendLine(path string, line string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(line + "\n")
	return err
}

// CreateDirectory creates a directory and its parents
func (f *FileSystemDriver) CreateDirectory(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ListDirectory lists directory entries
func (f *FileSystemDriver) ListDirectory(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// Glob returns the names of all files matching pattern
func (f *FileSystemDriver) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// RemoveFile removes a file
func (f *FileSystemDriver) RemoveFile(path string) error {
	return os.Remove(path)
}

// GetAbsolutePath returns the absolute path
func (f *FileSystemDriver) GetAbsolutePath(path string) (string, error) {
	return filepath.Abs(path)
}
