package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileAccessError reports a target file that could not be read or written.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// IsFileAccess reports whether err is, or wraps, a FileAccessError.
func IsFileAccess(err error) bool {
	var fae *FileAccessError
	return errors.As(err, &fae)
}

// Writer stores the new content of a target file.
type Writer interface {
	WriteFile(path, content string) error
}

// DiskWriter writes directly to the filesystem, keeping the file mode.
type DiskWriter struct{}

// WriteFile replaces the content of an existing file in a single write.
func (DiskWriter) WriteFile(path, content string) error {
	return WriteTarget(path, content)
}

// ReadTarget reads the whole content of an existing regular file.
func ReadTarget(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &FileAccessError{Op: "read", Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &FileAccessError{Op: "read", Path: path, Err: errors.New("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &FileAccessError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// WriteTarget overwrites an existing file. It never creates new files.
func WriteTarget(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// GetFileSHA256 returns the hex SHA-256 of a file's content.
func GetFileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashContent(string(data)), nil
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PathResolver finds absolute paths for recipe targets.
type PathResolver struct {
	root string
}

// NewPathResolver creates a PathResolver rooted at root, or at the current
// working directory when root is empty.
func NewPathResolver(root string) (*PathResolver, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		return &PathResolver{root: wd}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory '%s': %w", root, err)
	}
	return &PathResolver{root: abs}, nil
}

// Root returns the absolute directory relative paths resolve against.
func (r *PathResolver) Root() string {
	return r.root
}

// Resolve returns path unchanged when absolute, else joined to the root.
func (r *PathResolver) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.root, path)
}

// WithRoot returns a resolver whose root is dir, interpreted relative to
// the current root when not absolute.
func (r *PathResolver) WithRoot(dir string) *PathResolver {
	if dir == "" {
		return r
	}
	return &PathResolver{root: r.Resolve(dir)}
}
