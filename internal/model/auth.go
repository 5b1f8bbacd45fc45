package model

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required,min=8"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenClaims identifies the API client a token was issued to.
type TokenClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)
