package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/config"
	v1 "github.com/shenikar/resq_dispatch/internal/handler/http/v1"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/pkg/logger"
)

// tokengen выпускает JWT консоли диспетчера или командира, подписанный JWT_SECRET
func main() {
	role := flag.String("role", string(models.RoleDispatcher), "actor role: dispatcher or commander")
	id := flag.String("id", "", "actor id, commander ids must match COMMANDERS")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	log := logger.NewWithOptions(logger.Options{Level: "info", Service: "tokengen", Output: os.Stderr})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	actor := models.Actor{ID: *id, Role: models.Role(*role)}
	if !actor.Role.Valid() || actor.Role == models.RolePublic {
		log.Fatalf("Unsupported role %q", *role)
	}
	if actor.ID == "" {
		log.Fatal("Actor id is required")
	}

	now := time.Now()
	token, err := v1.IssueActorToken(cfg.JWTSecret, actor, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	log.WithField("actor_id", actor.ID).WithField("role", actor.Role).Info("Token issued")
	fmt.Println(token)
}
