package ir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemDiscovery implements Discovery for a directory of .graphql files
type FileSystemDiscovery struct {
	srcFilePaths map[SourceID]string
	srcMetas     map[SourceID]*SourceMetadata
}

// NewFileSystemDiscovery creates a new FileSystemDiscovery for the given root directory
func NewFileSystemDiscovery(ctx context.Context, rootDir string) (*FileSystemDiscovery, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	discovery := &FileSystemDiscovery{
		srcFilePaths: make(map[SourceID]string),
		srcMetas:     make(map[SourceID]*SourceMetadata),
	}

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) != ".graphql" {
			return nil
		}

		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}

		srcID := SourceID(filepath.ToSlash(strings.TrimSuffix(relPath, ".graphql")))
		discovery.srcFilePaths[srcID] = path
		discovery.srcMetas[srcID] = &SourceMetadata{
			ID:       srcID,
			Name:     strings.TrimSuffix(d.Name(), ".graphql"),
			FilePath: relPath,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory %q: %w", rootDir, err)
	}
	return discovery, nil
}

// ListMetadata returns the discovered documents ordered by id
func (d *FileSystemDiscovery) ListMetadata(ctx context.Context) ([]*SourceMetadata, error) {
	srcs := make([]*SourceMetadata, 0, len(d.srcMetas))
	for _, src := range d.srcMetas {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].ID < srcs[j].ID })
	return srcs, nil
}

// ReadSourceSDL reads the SDL content of a document
func (d *FileSystemDiscovery) ReadSourceSDL(ctx context.Context, id SourceID) (string, error) {
	fp, ok := d.srcFilePaths[id]
	if !ok {
		return "", fmt.Errorf("source %q not found", id)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return "", fmt.Errorf("failed to read source SDL for %q: %w", id, err)
	}
	return string(content), nil
}

// Load is a convenience function that creates a FileSystemDiscovery and builds the project
func Load(rootDir string) (*Project, error) {
	discovery, err := NewFileSystemDiscovery(context.Background(), rootDir)
	if err != nil {
		return nil, err
	}
	return Build(context.Background(), discovery)
}
