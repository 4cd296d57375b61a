package ir

import (
	"context"
)

type SourceMetadata struct {
	ID       SourceID
	Name     string
	FilePath string
}

// Discovery lists and reads the configuration documents of a gateway.
type Discovery interface {
	ListMetadata(ctx context.Context) ([]*SourceMetadata, error)
	ReadSourceSDL(ctx context.Context, id SourceID) (string, error)
}
