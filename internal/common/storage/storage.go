// Package storage puts submitted file buffers into an object store.
package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"formflow/internal/models"
)

// Storage accepts one buffer per call and returns where it landed.
type Storage interface {
	Put(ctx context.Context, file models.FileUpload, folder string) (models.StorageReference, error)
	Delete(ctx context.Context, storageID string) error
}

// Failure wraps a backend error with the operation and object key.
type Failure struct {
	Op  string
	Key string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("storage %s %s: %v", f.Op, f.Key, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ObjectKey builds "<folder>/<yyyy>/<mm>/<dd>/<uuid>-<filename>".
func ObjectKey(folder, filename string, now time.Time) string {
	name := sanitizeFilename(filename)
	return path.Join(
		strings.Trim(folder, "/"),
		now.UTC().Format("2006/01/02"),
		uuid.New().String()+"-"+name,
	)
}

func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return name
}

// ContentType prefers the declared type, then the extension, then sniffing.
func ContentType(file models.FileUpload) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Filename))); ct != "" {
		return ct
	}
	if len(file.Data) > 0 {
		return http.DetectContentType(file.Data)
	}
	return "application/octet-stream"
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
