package confirm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

// TokenGuard confirms over two HTTP round trips. The first attempt stores a one-time token
// and fails with ErrConfirmationRequired; repeating the call with that token acknowledges it.
type TokenGuard struct {
	tokens *cache.Cache
}

type TokenConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		TTL:             2 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

func NewTokenGuard(cfg TokenConfig) *TokenGuard {
	return &TokenGuard{tokens: cache.New(cfg.TTL, cfg.CleanupInterval)}
}

// For returns a Confirmer bound to one request. actorKey is the caller's
// model.ActorContext.Key; an empty key cannot hold a token, so every prompt is refused.
func (g *TokenGuard) For(actorKey, presented string) Confirmer {
	if actorKey == "" {
		return Deny
	}
	return ConfirmerFunc(func(_ context.Context, p Prompt) error {
		key := p.Key(actorKey)
		if presented != "" {
			if want, ok := g.tokens.Get(key); ok && want.(string) == presented {
				g.tokens.Delete(key)
				return nil
			}
		}
		token := uuid.NewString()
		g.tokens.Set(key, token, cache.DefaultExpiration)
		return errors.ConfirmationRequired(p.Message, token)
	})
}
