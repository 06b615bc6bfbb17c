package services

import (
	"context"
	"errors"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
	"hospital-booking-server/internal/utils"
)

// TokenPair is the body of a successful sign-in.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService signs users in and rotates their refresh tokens.
type AuthService struct {
	deps *Deps
	cfg  *config.Config
}

// Login checks credentials. Admins and doctors use their login id, patients their email.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, *models.User, error) {
	user, err := s.deps.Store.Users().FindByLogin(ctx, username)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.CheckPassword(password)) {
		return nil, nil, unauthorized("Incorrect username or password")
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, forbidden("Inactive user")
	}

	pair, err := s.issue(ctx, s.deps.Store, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, unauthorized("Invalid refresh token")
	}

	var pair *TokenPair
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		stored, err := tx.RefreshTokens().FindUsable(ctx, refreshToken, claims.UserID, s.deps.now())
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized("Refresh token not found, expired, or revoked")
		}
		if err != nil {
			return err
		}
		user, err := tx.Users().Get(ctx, claims.UserID)
		if err != nil {
			return missing(err, "User not found")
		}

		stored.IsRevoked = true
		if err := tx.RefreshTokens().Update(ctx, stored); err != nil {
			return err
		}
		pair, err = s.issue(ctx, tx, user)
		return err
	})
	return pair, err
}

// Logout revokes a refresh token. Unknown or already revoked tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.deps.Store.RefreshTokens().FindUsable(ctx, refreshToken, "", s.deps.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	stored.IsRevoked = true
	stored.ExpiresAt = s.deps.now()
	return s.deps.Store.RefreshTokens().Update(ctx, stored)
}

func (s *AuthService) issue(ctx context.Context, store repository.Store, user *models.User) (*TokenPair, error) {
	access, refresh, err := utils.GenerateTokens(user, s.cfg)
	if err != nil {
		return nil, err
	}
	err = store.RefreshTokens().Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.deps.now().Add(utils.RefreshTTL(s.cfg)),
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer", RefreshToken: refresh}, nil
}
