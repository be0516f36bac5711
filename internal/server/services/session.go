// Package services contains server-side business logic: the session state
// machine with optional TOTP step-up, the versioned object store and the
// audit ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/principals"
	"github.com/google/uuid"
)

// Assertion is a signed, time-boxed session token.
type Assertion struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult is either Authenticated or PendingSecondFactor.
type LoginResult interface {
	isLoginResult()
}

// Authenticated carries a usable assertion.
type Authenticated struct {
	PrincipalID string
	Assertion   Assertion
}

// PendingSecondFactor means the password matched but a TOTP code is still
// required. No assertion has been issued.
type PendingSecondFactor struct {
	PrincipalID string
}

func (Authenticated) isLoginResult()       {}
func (PendingSecondFactor) isLoginResult() {}

// VerifiedSession is the outcome of VerifyAssertion. Renewed is set when the
// presented assertion was close to expiry and a replacement was minted.
type VerifiedSession struct {
	PrincipalID string
	ExpiresAt   time.Time
	Renewed     *Assertion
}

type SessionService struct {
	principals principals.Repository
	hasher     auth.PasswordHasher
	factor     auth.SecondFactor
	auditor    Auditor
	logger     logging.Logger

	jwtSecret        []byte
	validity         time.Duration
	renewalThreshold time.Duration
	now              func() time.Time
}

func NewSessionService(repo principals.Repository, hasher auth.PasswordHasher, factor auth.SecondFactor,
	auditor Auditor, logger logging.Logger, cfg *config.Config) *SessionService {
	return &SessionService{
		principals:       repo,
		hasher:           hasher,
		factor:           factor,
		auditor:          auditor,
		logger:           logger.With("module", "session"),
		jwtSecret:        []byte(cfg.SecretKey),
		validity:         cfg.AccessTokenValidityDuration,
		renewalThreshold: cfg.RenewalThreshold,
		now:              time.Now,
	}
}

func (s *SessionService) issue(principalID string) (*Authenticated, error) {
	token, expires, err := auth.GenerateToken(principalID, s.jwtSecret, s.validity)
	if err != nil {
		return nil, fmt.Errorf("%w: sign assertion: %v", common.ErrorInternal, err)
	}
	return &Authenticated{PrincipalID: principalID, Assertion: Assertion{Token: token, ExpiresAt: expires}}, nil
}

// Register creates a principal and logs it in.
func (s *SessionService) Register(ctx context.Context, username, password string) (*Authenticated, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	p, err := s.principals.Create(ctx, &models.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: digest,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) {
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("error creating principal: %w", err)
	}

	s.logger.Info(ctx, "principal registered", "principal_id", p.ID)
	return s.issue(p.ID)
}

// Login checks the password. Unknown usernames and wrong passwords are
// indistinguishable, including in time spent.
func (s *SessionService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	p, err := s.principals.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Burn(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !s.hasher.Verify(password, p.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if p.HasSecondFactor() {
		return PendingSecondFactor{PrincipalID: p.ID}, nil
	}

	a, err := s.issue(p.ID)
	if err != nil {
		return nil, err
	}
	return *a, nil
}

// VerifySecondFactor completes a pending login.
func (s *SessionService) VerifySecondFactor(ctx context.Context, principalID, code string) (*Authenticated, error) {
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidSecondFactor
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !p.HasSecondFactor() || !s.factor.Verify(p.TOTPSecret, strings.TrimSpace(code), s.now()) {
		return nil, common.ErrInvalidSecondFactor
	}

	return s.issue(p.ID)
}

// Logout returns an empty assertion that expired at the Unix epoch; clients
// overwrite what they hold with it.
func (s *SessionService) Logout() Assertion {
	return Assertion{Token: "", ExpiresAt: time.Unix(0, 0).UTC()}
}

func (s *SessionService) findPrincipal(ctx context.Context, principalID string) (*models.Principal, error) {
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return p, nil
}

// EnableSecondFactor generates a fresh secret, replacing any existing one.
func (s *SessionService) EnableSecondFactor(ctx context.Context, principalID string) (*auth.Enrollment, error) {
	p, err := s.findPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.factor.Enroll(p.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: enroll second factor: %v", common.ErrorInternal, err)
	}

	if err := s.principals.SetSecondFactorSecret(ctx, p.ID, enrollment.Secret); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	s.auditor.Append(ctx, p.ID, models.ActionEnableSecondFactor, "")
	return enrollment, nil
}

func (s *SessionService) DisableSecondFactor(ctx context.Context, principalID string) error {
	if _, err := s.findPrincipal(ctx, principalID); err != nil {
		return err
	}
	if err := s.principals.SetSecondFactorSecret(ctx, principalID, ""); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	s.auditor.Append(ctx, principalID, models.ActionDisableSecondFactor, "")
	return nil
}

func (s *SessionService) HasSecondFactor(ctx context.Context, principalID string) (bool, error) {
	p, err := s.findPrincipal(ctx, principalID)
	if err != nil {
		return false, err
	}
	return p.HasSecondFactor(), nil
}

// VerifyAssertion resolves a token to its principal. When less than the
// renewal threshold remains, a replacement assertion for the same principal
// is minted and returned in Renewed.
func (s *SessionService) VerifyAssertion(ctx context.Context, token string) (*VerifiedSession, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	if _, err := s.findPrincipal(ctx, claims.UserID); err != nil {
		return nil, err
	}

	v := &VerifiedSession{PrincipalID: claims.UserID, ExpiresAt: claims.ExpiresAt.Time}

	if v.ExpiresAt.Sub(s.now()) < s.renewalThreshold {
		a, err := s.issue(claims.UserID)
		if err != nil {
			return nil, err
		}
		v.Renewed = &a.Assertion
		v.ExpiresAt = a.Assertion.ExpiresAt
		s.logger.Debug(ctx, "assertion renewed", "principal_id", claims.UserID)
	}

	return v, nil
}
