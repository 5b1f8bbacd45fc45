package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/auth"
	"github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/security"
)

// dummyHash keeps unknown client ids on the same bcrypt path as known ones.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3TYmYeBSmq9rl5Zz6PSXnSe"

type Service struct {
	jwtSvc  auth.JWTService
	hasher  security.SecretHasher
	clients map[string]string
}

// NewService takes client ids mapped to bcrypt hashes of their secrets. Ids
// are matched case-insensitively since config keys are lowercased on load.
func NewService(jwtSvc auth.JWTService, hasher security.SecretHasher, clients map[string]string) *Service {
	normalized := make(map[string]string, len(clients))
	for id, hash := range clients {
		normalized[strings.ToLower(id)] = hash
	}
	return &Service{
		jwtSvc:  jwtSvc,
		hasher:  hasher,
		clients: normalized,
	}
}

// IssueToken exchanges client credentials for a bearer token.
func (s *Service) IssueToken(ctx context.Context, req *model.TokenRequest) (*model.TokenResponse, error) {
	id := strings.ToLower(req.ClientID)
	hash, known := s.clients[id]
	if !known {
		hash = dummyHash
	}

	if err := s.hasher.Compare(hash, req.ClientSecret); err != nil || !known {
		if err != nil && !stderrors.Is(err, security.ErrSecretMismatch) {
			log.Error().Err(err).Str("client_id", req.ClientID).Msg("Client secret comparison failed")
		}
		return nil, errors.Unauthorized(model.ErrInvalidCredentials)
	}

	token, expiry, err := s.jwtSvc.GenerateAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	log.Info().Str("client_id", id).Msg("Access token issued")
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiry.Seconds()),
	}, nil
}

// ValidateToken returns the claims of a valid bearer token.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthorized(err)
	}
	return claims, nil
}
