package retrieval

import (
	"context"
	"fmt"
)

// LoadAliasRegistry reads the company catalog from store and builds an
// AliasRegistry (§3.1). cmd/reportgen does not call it; it builds its
// registry from store.CompanyAliases and NewAliasRegistry directly.
func LoadAliasRegistry(ctx context.Context, store KnowledgeStore) (*AliasRegistry, error) {
	byCanonical, err := store.CompanyAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: load alias registry: %w", err)
	}
	return NewAliasRegistry(byCanonical), nil
}
