package ir

import (
	"context"
	"fmt"
)

type InMemorySource struct {
	Name    string
	Content string
}

// InMemoryDiscovery is a Discovery over documents held in memory, listed in
// the order they were given
type InMemoryDiscovery struct {
	sources  []*SourceMetadata
	contents map[SourceID]string
}

// NewInMemoryDiscovery creates a new InMemoryDiscovery instance
func NewInMemoryDiscovery(srcs []InMemorySource) *InMemoryDiscovery {
	discovery := &InMemoryDiscovery{
		contents: make(map[SourceID]string),
	}

	for _, src := range srcs {
		id := SourceID(src.Name)
		discovery.sources = append(discovery.sources, &SourceMetadata{
			ID:       id,
			Name:     src.Name,
			FilePath: src.Name + ".graphql",
		})
		discovery.contents[id] = src.Content
	}
	return discovery
}

// ListMetadata implements Discovery interface
func (d *InMemoryDiscovery) ListMetadata(ctx context.Context) ([]*SourceMetadata, error) {
	return append([]*SourceMetadata(nil), d.sources...), nil
}

// ReadSourceSDL implements Discovery interface
func (d *InMemoryDiscovery) ReadSourceSDL(ctx context.Context, id SourceID) (string, error) {
	content, exists := d.contents[id]
	if !exists {
		return "", fmt.Errorf("source %q not found", id)
	}
	return content, nil
}
