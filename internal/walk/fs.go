package walk

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
)

// Entry is a single non-directory entry of a listed directory.
type Entry interface {
	// Name is the base name of the entry
	Name() string
	// Path is Name prefixed with the name of a filesystem
	Path() string
	// Stat returns the information of a symlink target for symlinks
	Stat() (fs.FileInfo, error)
}

// Dir lists the entries directly under the root of fsys and yields a handle
// for every entry which is not a directory, in lexical order. Symlinks are
// followed, so a link to a directory is skipped as well. Each Entry's Path()
// is prefixed with name.
// A failure of reading the directory itself is yielded once with a nil Entry.
func Dir(ctx context.Context, fsys fs.FS, name string) iter.Seq2[Entry, error] {
	if fsys == nil {
		panic("fsys is nil")
	}

	return func(yield func(Entry, error) bool) {
		dirEntries, err := fs.ReadDir(fsys, ".")
		if err != nil {
			yield(nil, err)
			return
		}

		for _, d := range dirEntries {
			if ctx.Err() != nil {
				return
			}
			if d.IsDir() {
				continue
			}
			var entry = fsEntry{
				name: d.Name(),
				path: filepath.Join(name, d.Name()),
			}
			info, err := fs.Stat(fsys, d.Name())
			if err != nil {
				entry.infoErr = err
			} else {
				if info.IsDir() {
					continue
				}
				entry.info = info
			}

			if !yield(entry, entry.infoErr) {
				return
			}
		}
	}
}

type fsEntry struct {
	name    string
	path    string
	info    fs.FileInfo
	infoErr error
}

func (e fsEntry) Name() string {
	return e.name
}

func (e fsEntry) Path() string {
	return e.path
}

func (e fsEntry) Stat() (fs.FileInfo, error) {
	return e.info, e.infoErr
}
