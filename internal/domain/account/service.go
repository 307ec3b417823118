package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthlink/healthlink/internal/platform/apperr"
	"github.com/healthlink/healthlink/internal/platform/auth"
)

const bcryptCost = 10

type Service struct {
	repo   Repository
	tokens *auth.TokenIssuer
}

func NewService(repo Repository, tokens *auth.TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// TokenPair is the access/refresh token pair returned on register, login
// and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register validates the role-specific registration shape, enforces
// identifier uniqueness within the role, and creates the account with a
// freshly issued token pair.
func (s *Service) Register(ctx context.Context, reg Registration) (*Account, *TokenPair, error) {
	if err := reg.validate(); err != nil {
		return nil, nil, err
	}

	a := &Account{ID: uuid.New(), Role: reg.role()}
	reg.apply(a)

	if existing, err := s.repo.GetByIdentifier(ctx, a.Role, a.Identifier()); err == nil && existing != nil {
		return nil, nil, apperr.Conflict("%s already registered with this identifier", a.Role)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}

	var password string
	a.Name, a.Phone, password = reg.common()
	if err := s.setPassword(a, password); err != nil {
		return nil, nil, err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, apperr.Conflict("%s already registered with this identifier", a.Role)
		}
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return a, pair, nil
}

func (s *Service) setPassword(a *Account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return apperr.Upstream(err, "hashing password")
	}
	a.PasswordHash = string(hash)
	return nil
}

type LoginRequest struct {
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login authenticates by (role, role identifier, password) and rotates
// the persisted refresh token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Account, *TokenPair, error) {
	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, nil, err
	}
	if req.Identifier == "" || req.Password == "" {
		return nil, nil, apperr.Validation("identifier and password are required")
	}

	a, err := s.repo.GetByIdentifier(ctx, role, req.Identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.Validation("invalid credentials")
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		return nil, nil, apperr.Validation("invalid credentials")
	}

	pair, err := s.issueTokens(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return a, pair, nil
}

// Refresh verifies the presented refresh token against the stored copy
// and rotates it. A token that does not match the stored one is
// rejected even when its signature is valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accountID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Validation("invalid refresh token")
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, apperr.Validation("invalid refresh token")
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation("invalid refresh token")
		}
		return nil, err
	}
	if a.RefreshToken == nil || *a.RefreshToken != refreshToken {
		return nil, apperr.Validation("invalid refresh token")
	}

	return s.issueTokens(ctx, a)
}

// Logout clears the stored refresh token.
func (s *Service) Logout(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.UpdateRefreshToken(ctx, accountID, nil)
}

func (s *Service) Me(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) issueTokens(ctx context.Context, a *Account) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(a.ID.String(), a.Role.String())
	if err != nil {
		return nil, apperr.Upstream(err, "issuing access token")
	}
	refresh, err := s.tokens.IssueRefresh(a.ID.String())
	if err != nil {
		return nil, apperr.Upstream(err, "issuing refresh token")
	}
	if err := s.repo.UpdateRefreshToken(ctx, a.ID, &refresh); err != nil {
		return nil, err
	}
	a.RefreshToken = &refresh
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
