package auth

import (
	"context"
	"errors"
	"strings"

	"stallbook/internal/shared/config"
	"stallbook/pkg/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenIssuer = "stallbook"

type Service interface {
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	EnsureAccount(ctx context.Context, name, email, password string, role Role) (*Account, error)
	ValidateToken(tokenString string) (*JWTClaims, error)
}

type service struct {
	repo   Repository
	config *config.Config
	clock  clockwork.Clock
	log    *logger.Logger
}

func NewService(repo Repository, cfg *config.Config, clock clockwork.Clock) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &service{
		repo:   repo,
		config: cfg,
		clock:  clock,
		log:    logger.GetDefault(),
	}
}

// HashPassword is shared with the seeder
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	account, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateAccessToken(account)
	if err != nil {
		return nil, err
	}
	s.log.LogAuthSuccess(ctx, account.ID.String(), "password")

	return &AuthResponse{
		Account:     ToAccountResponse(account),
		AccessToken: token,
		ExpiresIn:   int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// EnsureAccount creates the account unless one with the email already exists.
func (s *service) EnsureAccount(ctx context.Context, name, email, password string, role Role) (*Account, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	if !IsValidRole(string(role)) {
		role = RoleStaff
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := &Account{Name: name, Email: email, Password: hashed, Role: role}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return s.repo.GetByEmail(ctx, email)
		}
		return nil, err
	}
	return account, nil
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Type != "access" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) generateAccessToken(account *Account) (string, error) {
	now := s.clock.Now()
	claims := JWTClaims{
		UserID: account.ID.String(),
		Email:  account.Email,
		Role:   string(account.Role),
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.JWTExpiresIn)),
			Issuer:    tokenIssuer,
			Subject:   account.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWT.Secret))
}
