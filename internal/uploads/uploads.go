// Package uploads stores uploaded image files on local disk and hands back
// storage-relative paths ("uploads/<filename>") that documents reference.
package uploads

import (
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxFileSize caps a single uploaded image.
	MaxFileSize = 5 * 1024 * 1024 // 5MB

	// MaxFilesPerUpload caps the images file-array on product endpoints.
	MaxFilesPerUpload = 5

	// PathPrefix is the prefix of every relative path this store hands out.
	PathPrefix = "uploads"
)

var allowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Store writes and removes image files under a single directory.
type Store struct {
	dir string
}

// NewStore ensures dir exists and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory files are stored in, for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// Save sniffs the file's MIME type, writes it under a unique name and returns
// the storage-relative path ("uploads/<name>").
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("file %q exceeds the %d byte limit", fh.Filename, MaxFileSize)
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	mime, err := sniffMIME(file)
	if err != nil {
		return "", err
	}
	if !allowedMIMETypes[mime] {
		return "", fmt.Errorf("invalid file type %s. Only JPEG, PNG, GIF, and WebP are allowed", mime)
	}

	name := uniqueName(fh.Filename)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, MaxFileSize)); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return PathPrefix + "/" + name, nil
}

// Remove deletes the file a relative path refers to. Only the basename is
// honored, so stored paths can never escape the upload directory. A missing
// file surfaces as fs.ErrNotExist for the caller to swallow.
func (s *Store) Remove(relPath string) error {
	base := filepath.Base(strings.TrimSpace(relPath))
	if base == "." || base == string(filepath.Separator) {
		return fmt.Errorf("invalid image path %q", relPath)
	}
	return os.Remove(filepath.Join(s.dir, base))
}

// uniqueName builds a multer-style filename: images-<timestamp>-<rand><ext>.
func uniqueName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("images-%d-%d%s", time.Now().UnixNano(), rand.Intn(1_000_000_000), ext)
}

// sniffMIME reads the first 512 bytes to detect the content type and resets
// the reader so later reads start from byte 0.
func sniffMIME(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read: %w", err)
	}
	mime := http.DetectContentType(buf[:n])

	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek reset: %w", err)
		}
	}
	return mime, nil
}
