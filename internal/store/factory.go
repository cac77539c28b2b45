package store

import (
	"context"
	"fmt"

	mydb "github.com/0888060509/champong-admin/internal/db"
)

// NewStore opens the backend named by storeType, "memory" or "postgres".
func NewStore(ctx context.Context, storeType, dbDSN string) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := mydb.Open(ctx, dbDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
