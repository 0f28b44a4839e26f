package services

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/auth"
	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
	"knowledge-base/backend/pkg/logger"
)

// RegisterInput is a new account request
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the editable profile fields; nil means unchanged
type ProfileUpdate struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Bio      *string `json:"bio"`
}

// Session is returned when a user signs in
type Session struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// AuthService handles accounts and tokens
type AuthService struct {
	db     *store.DB
	issuer *auth.Issuer
	logger *zap.Logger
}

// NewAuthService creates an auth service
func NewAuthService(db *store.DB, issuer *auth.Issuer) *AuthService {
	return &AuthService{db: db, issuer: issuer, logger: logger.Named("services.auth")}
}

// Register creates an account and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperrors.NewValidationFailed("username", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperrors.NewValidationFailed("email", "is not a valid address")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, Email: in.Email, PasswordHash: hash}
	if err := s.db.InTx(ctx, func(tx *store.Tx) error {
		return tx.CreateUser(ctx, user)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return s.session(user)
}

// Login checks credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.db.Reader().GetUserByEmail(ctx, email)
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Info("Login failed", zap.Int64("user_id", user.ID))
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.session(user)
}

// Refresh exchanges a refresh token for a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, constants.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	// The account may have been removed since the token was issued
	if _, err := s.db.Reader().GetUser(ctx, claims.UserID); err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorized("unknown user", nil)
		}
		return nil, err
	}
	return s.issuer.Issue(claims.UserID)
}

// Authenticate resolves an access token to its user id
func (s *AuthService) Authenticate(accessToken string) (int64, error) {
	claims, err := s.issuer.Verify(accessToken, constants.TokenTypeAccess)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Profile returns the user's account
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.db.Reader().GetUser(ctx, userID)
}

// UpdateProfile applies the non-nil fields of in
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*models.User, error) {
	var user *models.User
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if user, err = tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if in.Username != nil {
			name := strings.TrimSpace(*in.Username)
			if name == "" {
				return apperrors.NewValidationFailed("username", "is required")
			}
			user.Username = name
		}
		if in.Avatar != nil {
			user.Avatar = *in.Avatar
		}
		if in.Bio != nil {
			user.Bio = *in.Bio
		}
		return tx.UpdateUserProfile(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	return s.db.InTx(ctx, func(tx *store.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !auth.CheckPassword(user.PasswordHash, oldPassword) {
			return apperrors.NewValidationFailed("old_password", "is incorrect")
		}
		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			return err
		}
		if err := tx.UpdateUserPassword(ctx, userID, hash); err != nil {
			return err
		}
		s.logger.Info("Password changed", zap.Int64("user_id", userID))
		return nil
	})
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	tokens, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}
