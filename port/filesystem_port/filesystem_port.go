package filesystem_port

import (
	"os"
)

// FileSystemPort defines the interface for file system operations
type FileSystemPort interface {
	// FileExists checks if a file exists
	FileExists(path string) bool

	// DirectoryExists checks if a directory exists
	DirectoryExists(path string) bool

	// ReadFile reads the contents of a file
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file
	WriteFile(path string, data []byte, perm os.FileMode) error

	// WriteFileAtomic durably writes data: temp file, fsync, rename.
	// Readers never observe a torn value.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// AppendLine appends a line to a file, creating it if needed
	AppendLine(path string, line string) error

	// CreateDirectory creates a directory and its parents
	CreateDirectory(path string, perm os.FileMode) error

	// ListDirectory lists directory entries
	ListDirectory(path string) ([]os.DirEntry, error)

	// Glob returns the names of all files matching pattern
	Glob(pattern string) ([]string, error)

	// RemoveFile removes a file
	RemoveFile(path string) error

	// GetAbsolutePath returns the absolute path
	GetAbsolutePath(path string) (string, error)
}
