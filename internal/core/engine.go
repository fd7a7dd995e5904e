package core

import (
	"context"
	"errors"
	"fmt"

	"chainquery/internal/repository"
	tokenIssuer "chainquery/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrIncorrectPassword error = errors.New("incorrect password")
var ErrUserNotFound error = errors.New("user not found")

// Engine is the read-path query engine: it answers balance, fee, and
// transaction-history queries by combining indexed records with live calls to
// a remote execution node.
type Engine struct {
	logs      *zap.SugaredLogger
	repo      Repository
	cache     Cache
	node      NodeGateway
	jwtIssuer JWTIssuer
}

func NewEngine(logger *zap.SugaredLogger, repo Repository, cache Cache, nodeGateway NodeGateway, jwt JWTIssuer) *Engine {
	return &Engine{
		logs:      logger,
		repo:      repo,
		cache:     cache,
		node:      nodeGateway,
		jwtIssuer: jwt,
	}
}

// Authenticate checks the provided credentials and issues a JWT for the user.
func (e *Engine) Authenticate(ctx context.Context, msg AuthMessage) (string, error) {
	user, err := e.repo.GetUserByUsername(ctx, msg.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("get user from db: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(msg.Password)); err != nil {
		return "", ErrIncorrectPassword
	}

	tokenInfo := tokenIssuer.TokenInfo{
		UserName:   user.Username,
		Subject:    user.ID,
		Expiration: 24,
	}
	token := e.jwtIssuer.Generate(tokenInfo)
	signed, err := e.jwtIssuer.Sign(token)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}
