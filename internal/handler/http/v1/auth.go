package v1

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shenikar/resq_dispatch/internal/config"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const actorContextKey = "actor"

var errActorTokenInvalid = errors.New("invalid actor token")

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу.
// Без настроенных ключей пропускает все запросы.
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// браузер не умеет ставить заголовки на WebSocket
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
			return
		}

		if !slices.Contains(cfg.APIKeys, apiKey) {
			log.Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid API key"})
			return
		}

		c.Next()
	}
}

// actorClaims - JWT консоли: sub - идентификатор участника, role - его роль
type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ActorMiddleware определяет участника запроса.
// С JWT_SECRET участник берется из подписанного токена, без него - из заголовков X-Actor-ID/X-Actor-Role.
// Запрос без участника считается запросом заявителя.
func ActorMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	return func(c *gin.Context) {
		var (
			actor models.Actor
			err   error
		)
		if len(secret) > 0 {
			actor, err = actorFromToken(c, secret)
		} else {
			actor = models.Actor{ID: c.GetHeader("X-Actor-ID"), Role: models.Role(c.GetHeader("X-Actor-Role"))}
		}
		if err != nil {
			log.WithError(err).Warn("Rejected actor token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}

		if actor.Role == "" {
			actor.Role = models.RolePublic
		}
		if !actor.Role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unknown actor role"})
			return
		}
		if actor.Role != models.RolePublic && actor.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "actor id required"})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func actorFromToken(c *gin.Context, secret []byte) (models.Actor, error) {
	raw := c.GetHeader("X-Actor-Token")
	if raw == "" {
		raw = c.Query("access_token")
	}
	if raw == "" {
		return models.Actor{}, nil
	}

	claims := &actorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", errActorTokenInvalid, err)
	}
	return models.Actor{ID: claims.Subject, Role: models.Role(claims.Role)}, nil
}

// RequireRole пропускает только участников с одной из ролей
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if !slices.Contains(roles, actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: fmt.Sprintf("role %q is not allowed here", actor.Role),
				Code:  "forbidden",
			})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{Role: models.RolePublic}
}

// IssueActorToken подписывает токен консоли
func IssueActorToken(secret string, actor models.Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = actor.ID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{Role: string(actor.Role), RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}
