package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidFilename     = errors.New("invalid filename")
	ErrAttachmentMissing   = errors.New("attachment missing")
)

// PublicPrefix is prepended to stored names in the attachment reference.
const PublicPrefix = "uploads"

var allowedExtensions = map[string]struct{}{
	"txt": {}, "pdf": {}, "png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "doc": {}, "docx": {},
}

// AttachmentStore persists ticket attachments.
type AttachmentStore interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Open(ref string) (io.ReadCloser, error)
	Remove(ref string) error
}

// LocalStore writes attachments into a directory on disk.
type LocalStore struct {
	dir      string
	maxBytes int64
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// fallbackBasename replaces names that sanitise away entirely.
const fallbackBasename = "attachment"

// AllowedFile reports whether filename carries an allowed extension.
func AllowedFile(filename string) bool {
	_, ok := allowedExtensions[extension(filename)]
	return ok
}

func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// StoredName is the sanitised name kept on disk. When sanitising leaves no
// usable basename, as with non-ASCII names, a generic one keeps the original
// extension.
func StoredName(filename string) string {
	safe := SanitizeFilename(filename)
	if safe != "" && strings.Contains(safe, ".") && AllowedFile(safe) {
		return safe
	}
	return fallbackBasename + "." + extension(filename)
}

// SanitizeFilename reduces filename to a safe ASCII basename.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, "/")
	filename = path.Base(filename)

	words := strings.Fields(filename)
	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		var b strings.Builder
		for _, r := range word {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			cleaned = append(cleaned, b.String())
		}
	}
	return strings.Trim(strings.Join(cleaned, "_"), "._")
}

// Save stores content under a unique name and returns the reference
// "uploads/<uuid>_<name>".
func (s *LocalStore) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	if !AllowedFile(filename) {
		return "", ErrExtensionNotAllowed
	}
	safe := StoredName(filename)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + "_" + safe
	target := filepath.Join(s.dir, name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return "", fmt.Errorf("write attachment: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(target)
		return "", fmt.Errorf("close attachment: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = os.Remove(target)
		return "", ErrFileTooLarge
	}

	return PublicPrefix + "/" + name, nil
}

// DisplayName is the name a stored reference was saved under, without the
// unique prefix.
func DisplayName(ref string) string {
	name := path.Base(ref)
	if _, rest, ok := strings.Cut(name, "_"); ok && rest != "" {
		return rest
	}
	return name
}

func (s *LocalStore) path(ref string) (string, error) {
	name := strings.TrimPrefix(ref, PublicPrefix+"/")
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", ErrInvalidFilename
	}
	return filepath.Join(s.dir, name), nil
}

// Open returns the content of a saved attachment.
func (s *LocalStore) Open(ref string) (io.ReadCloser, error) {
	target, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAttachmentMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Remove deletes a previously saved attachment. Missing files are ignored.
func (s *LocalStore) Remove(ref string) error {
	target, err := s.path(ref)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
