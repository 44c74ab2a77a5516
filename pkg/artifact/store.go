// Package artifact maps models to their weight files on local storage.
package artifact

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tipai/modelkit/pkg/catalog"
)

// extension is the fixed artifact file extension.
const extension = ".gguf"

// Store derives and inspects artifact locations under a fixed local-storage
// root. Path derivation is pure; only Exists, Size and Remove touch the
// filesystem.
type Store struct {
	// root is the local-storage directory holding all artifacts.
	root string
}

// NewStore creates a store rooted at the given directory. The directory is
// created on first download, not here.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the local-storage root.
func (s *Store) Root() string {
	return s.root
}

// PathFor derives the artifact path for a model: the store root joined with
// the sanitized model name and the fixed extension. It performs no I/O.
func (s *Store) PathFor(model catalog.ModelDescriptor) string {
	return filepath.Join(s.root, sanitizeFileName(model.Name)+extension)
}

// Exists reports whether a non-empty artifact is present for the model.
// Filesystem errors read as absence; they resurface on the subsequent open or
// write.
func (s *Store) Exists(model catalog.ModelDescriptor) bool {
	info, err := os.Stat(s.PathFor(model))
	return err == nil && info.Size() > 0
}

// Size returns the current on-disk size of the model's artifact, or zero if
// it does not exist. Partial downloads report their partial size.
func (s *Store) Size(model catalog.ModelDescriptor) int64 {
	info, err := os.Stat(s.PathFor(model))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Remove deletes the model's artifact from local storage. Removing a missing
// artifact is not an error.
func (s *Store) Remove(model catalog.ModelDescriptor) error {
	err := os.Remove(s.PathFor(model))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sanitizeFileName strips path separators from a model name so a catalog name
// can never escape the storage root.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	return name
}
