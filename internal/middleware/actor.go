package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/auth"
)

const (
	ContextActor = "actor"
	// HeaderActorID names the actor when the bearer token is opaque. It is ignored on
	// requests without a token.
	HeaderActorID = "X-Actor-ID"
)

// Actor builds the ActorContext of each request from its bearer token. Claims are read
// without verification: the backend validates the token on every forwarded call.
// A request without a token proceeds as the anonymous actor.
func Actor() gin.HandlerFunc {
	reader := auth.NewClaimsReader()

	return func(c *gin.Context) {
		var actor model.ActorContext

		if raw, ok := auth.Bearer(c.GetHeader("Authorization")); ok {
			actor.Token = raw
			actor.ActorID = c.GetHeader(HeaderActorID)
			if claims, err := reader.Read(raw); err == nil {
				if claims.ActorID != "" {
					actor.ActorID = claims.ActorID
				}
				actor.Role = model.Role(claims.Role)
			} else {
				log.Debug().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("bearer token is not a readable JWT, forwarding as is")
			}
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

// ActorFrom returns the actor set by Actor, or the anonymous actor.
func ActorFrom(c *gin.Context) model.ActorContext {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(model.ActorContext); ok {
			return actor
		}
	}
	return model.ActorContext{}
}
