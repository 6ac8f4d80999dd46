// Package library defines the managed presentation-folder abstraction.
// Projects are subdirectories of the library root; importing a file copies
// it into its project folder.
package library

import "github.com/starford/slideman/internal/models"

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List returns metadata for every .pptx file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Import copies the external file at srcPath into the project folder
	// and returns the resulting relative path.
	Import(srcPath, projectFolder string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Abs resolves path against the library root, rejecting escapes.
	Abs(path string) (string, error)
	// Root returns the absolute library root directory.
	Root() string
}
