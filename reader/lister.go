package reader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileKind classifies a file in a schema directory by its extension
type FileKind int

const (
	KindOther FileKind = iota
	KindTable
	KindPrimaryIndex
	KindSecondaryIndex
	KindLOB
	KindValidation
	KindView
)

// String returns the kind name
func (k FileKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindPrimaryIndex:
		return "primary index"
	case KindSecondaryIndex:
		return "secondary index"
	case KindLOB:
		return "blob"
	case KindValidation:
		return "validation"
	case KindView:
		return "view"
	}
	return "other"
}

// FileEntry is one classified file in a directory
type FileEntry struct {
	Name string
	Path string
	Kind FileKind
}

// Stem returns the file name without extension
func (e FileEntry) Stem() string {
	return strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
}

// Lister enumerates candidate files and sub-directories of a schema directory
type Lister interface {
	List(dir string) ([]FileEntry, error)
	Subdirs(dir string) ([]string, error)
}

// DirLister lists the local file system
type DirLister struct{}

// List returns the classified regular files of dir
func (DirLister) List(dir string) ([]FileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}
	var out []FileEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, FileEntry{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Kind: ClassifyFile(e.Name()),
		})
	}
	return out, nil
}

// Subdirs returns the paths of the immediate sub-directories of dir
func (DirLister) Subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// ClassifyFile maps a file name to its kind
func ClassifyFile(name string) FileKind {
	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "DB":
		return KindTable
	case "PX":
		return KindPrimaryIndex
	case "MB":
		return KindLOB
	case "VAL":
		return KindValidation
	case "QBE", "SQL":
		return KindView
	}
	if len(ext) == 3 && (ext[0] == 'X' || ext[0] == 'Y') {
		// .Xnn/.Ynn with hex digits, or .XGn/.YGn
		if isHex(ext[1]) && isHex(ext[2]) || ext[1] == 'G' && isHex(ext[2]) {
			return KindSecondaryIndex
		}
	}
	return KindOther
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'F'
}
