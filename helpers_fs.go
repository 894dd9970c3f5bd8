// includenav/helpers_fs.go
// Contains the afs-backed FileSystem implementation.
package includenav

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// FileStat describes a stat result.
type FileStat struct {
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// DirEntry is one immediate child of a listed directory.
type DirEntry struct {
	Name  string
	IsDir bool
}

// AFSFileSystem implements FileSystem on top of github.com/viant/afs.
// Paths are absolute local paths; afs treats them as file:// URLs.
type AFSFileSystem struct {
	fs afs.Service
}

// NewAFSFileSystem returns a FileSystem backed by a fresh afs service.
func NewAFSFileSystem() *AFSFileSystem {
	return &AFSFileSystem{fs: afs.New()}
}

// ReadFile downloads the whole file at p.
func (a *AFSFileSystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	exists, err := a.fs.Exists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", p, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	data, err := a.fs.DownloadWithURL(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

// Stat reports whether p is a file or directory.
func (a *AFSFileSystem) Stat(ctx context.Context, p string) (FileStat, error) {
	exists, err := a.fs.Exists(ctx, p)
	if err != nil {
		return FileStat{}, fmt.Errorf("checking %s: %w", p, err)
	}
	if !exists {
		return FileStat{}, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	object, err := a.fs.Object(ctx, p)
	if err != nil {
		return FileStat{}, fmt.Errorf("%w: %s: %w", ErrPathNotFound, p, err)
	}
	return FileStat{IsDir: object.IsDir(), Size: object.Size(), ModTime: object.ModTime()}, nil
}

// ReadDir lists the immediate children of dir.
func (a *AFSFileSystem) ReadDir(ctx context.Context, dir string) ([]DirEntry, error) {
	objects, err := a.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFilesystemList, dir, err)
	}
	self := strings.TrimRight(filepath.ToSlash(dir), "/")
	entries := make([]DirEntry, 0, len(objects))
	for _, object := range objects {
		// afs includes the listed directory itself.
		if url.Equals(object.URL(), dir) || strings.TrimRight(url.Path(object.URL()), "/") == self {
			continue
		}
		entries = append(entries, DirEntry{Name: object.Name(), IsDir: object.IsDir()})
	}
	return entries, nil
}

// isNotFound reports whether err means the path does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, ErrPathNotFound)
}
