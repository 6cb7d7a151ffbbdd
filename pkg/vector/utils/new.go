package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/cortex/pkg/vector"
	"github.com/papercomputeco/cortex/pkg/vector/qdrant"
	"github.com/papercomputeco/cortex/pkg/vector/sqlitevec"
)

type NewCentroidIndexOpts struct {
	ProviderType string
	Target       string
	Logger       *slog.Logger
}

// NewCentroidIndex opens the configured centroid index. Provider "none" or
// "" returns vector.ErrDisabled.
func NewCentroidIndex(ctx context.Context, o *NewCentroidIndexOpts) (vector.CentroidIndex, error) {
	switch o.ProviderType {
	case "", "none":
		return nil, vector.ErrDisabled
	case "sqlite-vec":
		target := o.Target
		if target == "" {
			target = "cortex-vectors.db"
		}
		return sqlitevec.NewSQLiteVecIndex(sqlitevec.Config{DBPath: target}, o.Logger)
	case "qdrant":
		return qdrant.NewQdrantIndex(ctx, qdrant.Config{Target: o.Target}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
