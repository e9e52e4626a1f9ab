// Package storage defines the read-only workspace file-system abstraction
// that backs document content.
package storage

// Provider is the interface for workspace file operations.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to the workspace root).
	Read(path string) ([]byte, error)
	// Resolve returns the absolute location of path, rejecting paths that escape the root.
	Resolve(path string) (string, error)
	// Root returns the absolute workspace root.
	Root() string
}
