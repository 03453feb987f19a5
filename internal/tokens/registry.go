package tokens

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/domain"
	"poolstats/internal/store"
)

// Sentinels recorded when a metadata query reverts. Metadata failure is never
// fatal: the token is still created and the stream keeps flowing.
const (
	UnknownName   = "unknown name"
	UnknownSymbol = "unknown symbol"
)

// MetadataSource queries token metadata from the token contract. Each call may
// fail independently (revert); failures degrade to sentinel values.
type MetadataSource interface {
	Name(ctx context.Context, token string) (string, error)
	Symbol(ctx context.Context, token string) (string, error)
	Decimals(ctx context.Context, token string) (uint8, error)
}

// NativeAsset describes the chain's native asset, whose metadata is hardcoded
// rather than fetched: it has no token contract to query.
type NativeAsset struct {
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
}

// Registry owns the token collection and the pool-token <-> reserve-token
// association.
type Registry struct {
	log    logger.Logger
	tokens *store.Collection[domain.Token]
	meta   MetadataSource
	native NativeAsset
}

func NewRegistry(log logger.Logger, tokens *store.Collection[domain.Token], meta MetadataSource, native NativeAsset) (*Registry, error) {
	if tokens == nil {
		return nil, errors.New("token collection is required")
	}
	if meta == nil {
		return nil, errors.New("metadata source is required")
	}

	return &Registry{
		log:    log,
		tokens: tokens,
		meta:   meta,
		native: native,
	}, nil
}

// Find loads a token by address.
func (r *Registry) Find(ctx context.Context, id string) (*domain.Token, bool, error) {
	return r.tokens.Find(ctx, id)
}

// CreatePoolToken creates the pool-token entity, fetching metadata per field
// with sentinel fallbacks.
func (r *Registry) CreatePoolToken(ctx context.Context, id string) (*domain.Token, error) {
	tok := &domain.Token{ID: id}
	r.fillMetadata(ctx, tok)

	if err := r.tokens.Save(ctx, id, tok); err != nil {
		return nil, fmt.Errorf("save pool token %s: %w", id, err)
	}
	return tok, nil
}

// CreateReserveToken creates the reserve-token entity linked to its pool
// token. The native asset is special-cased with hardcoded metadata.
func (r *Registry) CreateReserveToken(ctx context.Context, id, poolTokenID string) (*domain.Token, error) {
	tok := &domain.Token{ID: id, PoolToken: poolTokenID}

	if id == r.native.Address {
		tok.Name = r.native.Name
		tok.Symbol = r.native.Symbol
		tok.Decimals = r.native.Decimals
	} else {
		r.fillMetadata(ctx, tok)
	}

	if err := r.tokens.Save(ctx, id, tok); err != nil {
		return nil, fmt.Errorf("save reserve token %s: %w", id, err)
	}
	return tok, nil
}

func (r *Registry) fillMetadata(ctx context.Context, tok *domain.Token) {
	name, err := r.meta.Name(ctx, tok.ID)
	if err != nil {
		r.log.Warnf("name() on %s reverted: %v", tok.ID, err)
		name = UnknownName
	}
	tok.Name = name

	symbol, err := r.meta.Symbol(ctx, tok.ID)
	if err != nil {
		r.log.Warnf("symbol() on %s reverted: %v", tok.ID, err)
		symbol = UnknownSymbol
	}
	tok.Symbol = symbol

	decimals, err := r.meta.Decimals(ctx, tok.ID)
	if err != nil {
		r.log.Warnf("decimals() on %s reverted: %v", tok.ID, err)
		decimals = 0
	}
	tok.Decimals = decimals
}
