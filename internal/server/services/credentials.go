// Package services contains server-side business logic. This file implements
// CredentialManager: registration, login, session and API key guards and the
// password reset flow for one account role.
package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/cryptox"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/mailer"
	"github.com/dmitrijs2005/estatematch/internal/server/auth"
	"github.com/dmitrijs2005/estatematch/internal/server/config"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
)

// Messages shown to callers.
const (
	MsgMissingData        = "Missing data"
	MsgPasswordsMismatch  = "Passwords do not match"
	MsgAlreadyRegistered  = "Already registered"
	MsgMissingCredentials = "Please provide email and password"
	MsgBadCredentials     = "Please provide correct email or password"
	MsgNotLoggedIn        = "You are not logged in! Please log in to get access."
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgInvalidSession     = "Invalid token. Please log in again."
	MsgAccountGone        = "The user belonging to this token no longer exists."
	MsgPasswordChanged    = "User recently changed password. Please log in again."
	MsgAPIKeyRequired     = "API key required"
	MsgInvalidAPIKey      = "Invalid API key"
	MsgEmailNotFound      = "Email not found"
	MsgInvalidCode        = "Invalid code"
	MsgUserNotFound       = "user with that email not found"
	MsgCodeNotVerified    = "reset code is not verified"
	MsgMailFailed         = "Could not send the reset code"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// CredentialManager authenticates accounts of a single role. Agents and
// clients get separate instances; every lookup goes through a repository
// scoped to that role.
type CredentialManager struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	role            models.Role
	jwtSecret       []byte
	sessionValidity time.Duration
	resetValidity   time.Duration
	keyring         *cryptox.Keyring
	mailer          mailer.Sender
	log             logging.Logger
}

// NewCredentialManager constructs a CredentialManager for role.
func NewCredentialManager(role models.Role, db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	keyring *cryptox.Keyring, sender mailer.Sender, log logging.Logger) *CredentialManager {
	return &CredentialManager{
		db:              db,
		repomanager:     m,
		role:            role,
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidityDuration,
		resetValidity:   cfg.ResetCodeValidityDuration,
		keyring:         keyring,
		mailer:          sender,
		log:             log.With("role", string(role)),
	}
}

// Role returns the account role served by this manager.
func (s *CredentialManager) Role() models.Role { return s.role }

// SessionValidity is the lifetime of issued session tokens.
func (s *CredentialManager) SessionValidity() time.Duration { return s.sessionValidity }

func (s *CredentialManager) repo() accounts.Repository {
	return s.repomanager.Accounts(s.db, s.role)
}

// Register creates an account. The password is stored as a bcrypt hash.
func (s *CredentialManager) Register(ctx context.Context, name, email, password, confirmPassword string) (*models.Account, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" || confirmPassword == "" {
		return nil, common.NewError(common.ErrValidation, MsgMissingData)
	}
	if password != confirmPassword {
		return nil, common.NewError(common.ErrValidation, MsgPasswordsMismatch)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		Name:              name,
		Email:             email,
		PasswordHash:      hash,
		PasswordChangedAt: timeNow().Add(-time.Second),
	}
	a, err := s.repo().Create(ctx, account)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.NewError(common.ErrConflict, MsgAlreadyRegistered)
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return a, nil
}

// Authenticate checks credentials and issues a session token. Unknown email
// and wrong password fail identically.
func (s *CredentialManager) Authenticate(ctx context.Context, email, password string) (string, *models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, common.NewError(common.ErrValidation, MsgMissingCredentials)
	}

	badCredentials := common.NewError(common.ErrorUnauthorized, MsgBadCredentials)

	account, err := s.repo().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn comparable time so the two failures look alike
			_, _ = auth.CheckPassword(dummyHash(), password)
			return "", nil, badCredentials
		}
		return "", nil, fmt.Errorf("error loading account: %w", err)
	}

	ok, err := auth.CheckPassword(account.PasswordHash, password)
	if err != nil {
		return "", nil, fmt.Errorf("error checking password: %w", err)
	}
	if !ok {
		return "", nil, badCredentials
	}

	token, err := auth.GenerateToken(account.ID, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return "", nil, fmt.Errorf("error signing token: %w", err)
	}
	return token, account, nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("estatematch-unknown-account")
	return h
})

// Authorize is the session guard.
func (s *CredentialManager) Authorize(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.NewError(common.ErrorUnauthorized, MsgNotLoggedIn)
	}

	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.NewError(common.ErrTokenExpired, MsgSessionExpired)
		}
		return nil, common.NewError(common.ErrInvalidToken, MsgInvalidSession)
	}

	account, err := s.repo().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, MsgAccountGone)
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}

	if claims.IssuedBefore(account.PasswordChangedAt) {
		return nil, common.NewError(common.ErrorUnauthorized, MsgPasswordChanged)
	}
	return account, nil
}

// IssueAPIKey seals dbURI, stores it with the digest of a fresh key and
// returns the key. Any earlier key stops working.
func (s *CredentialManager) IssueAPIKey(ctx context.Context, accountID, dbURI string) (string, error) {
	dbURI = strings.TrimSpace(dbURI)
	if dbURI == "" {
		return "", common.NewError(common.ErrValidation, MsgMissingData)
	}

	key, err := common.MakeRandHexString(32)
	if err != nil {
		return "", fmt.Errorf("error generating api key: %w", err)
	}
	sealed, err := s.keyring.Seal(dbURI)
	if err != nil {
		return "", fmt.Errorf("error sealing database uri: %w", err)
	}

	if err := s.repo().SetAPIKey(ctx, accountID, common.DigestHex(key), sealed); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.NewError(common.ErrorUnauthorized, MsgAccountGone)
		}
		return "", fmt.Errorf("error storing api key: %w", err)
	}
	return key, nil
}

// RevokeAPIKey removes the key and the stored connection string.
func (s *CredentialManager) RevokeAPIKey(ctx context.Context, accountID string) error {
	if err := s.repo().ClearAPIKey(ctx, accountID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorUnauthorized, MsgAccountGone)
		}
		return fmt.Errorf("error revoking api key: %w", err)
	}
	return nil
}

// AuthorizeAPIKey is the API key guard.
func (s *CredentialManager) AuthorizeAPIKey(ctx context.Context, key string) (*models.Account, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, common.NewError(common.ErrorUnauthorized, MsgAPIKeyRequired)
	}

	account, err := s.repo().GetByAPIKeyHash(ctx, common.DigestHex(key))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrForbidden, MsgInvalidAPIKey)
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	return account, nil
}

// TenantDSN opens the account's sealed connection string. The second
// result is false when the account has none.
func (s *CredentialManager) TenantDSN(account *models.Account) (string, bool, error) {
	if !account.HasTenantDB() {
		return "", false, nil
	}
	dsn, err := s.keyring.Open(account.TenantDSN.String)
	if err != nil {
		return "", false, fmt.Errorf("error opening tenant dsn: %w", err)
	}
	return dsn, true, nil
}

// resetCode is a seam for tests.
var resetCode = func() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SendResetCode stores a six digit code and mails it to email.
func (s *CredentialManager) SendResetCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return common.NewError(common.ErrValidation, MsgEmailNotFound)
	}

	code, err := resetCode()
	if err != nil {
		return fmt.Errorf("error generating reset code: %w", err)
	}

	err = s.repo().SetResetCode(ctx, email, common.DigestHex(code), timeNow().Add(s.resetValidity))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrValidation, MsgEmailNotFound)
		}
		return fmt.Errorf("error storing reset code: %w", err)
	}

	if err := s.mailer.SendResetCode(ctx, email, code); err != nil {
		s.log.Error(ctx, "reset code delivery failed", "error", err)
		return common.NewError(fmt.Errorf("%w: %v", common.ErrUpstream, err), MsgMailFailed)
	}
	return nil
}

// VerifyResetCode authorizes one password reset when code matches and
// has not expired.
func (s *CredentialManager) VerifyResetCode(ctx context.Context, email, code string) error {
	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if email == "" || code == "" {
		return common.NewError(common.ErrValidation, MsgInvalidCode)
	}

	err := s.repo().VerifyResetCode(ctx, email, common.DigestHex(code), timeNow())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrValidation, MsgInvalidCode)
		}
		return fmt.Errorf("error verifying reset code: %w", err)
	}
	return nil
}

// ResetPassword consumes a verified reset and replaces the password.
func (s *CredentialManager) ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	repo := s.repo()

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, MsgUserNotFound)
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	if !account.ResetVerified {
		return nil, common.NewError(common.ErrorUnauthorized, MsgCodeNotVerified)
	}
	if newPassword == "" || confirmPassword == "" {
		return nil, common.NewError(common.ErrValidation, MsgMissingData)
	}
	if newPassword != confirmPassword {
		return nil, common.NewError(common.ErrValidation, MsgPasswordsMismatch)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	changedAt := timeNow().Add(-time.Second)

	if err := repo.ResetPassword(ctx, account.ID, hash, changedAt); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// verification was consumed concurrently
			return nil, common.NewError(common.ErrorUnauthorized, MsgCodeNotVerified)
		}
		return nil, fmt.Errorf("error resetting password: %w", err)
	}

	account.PasswordHash = hash
	account.PasswordChangedAt = changedAt
	account.ResetVerified = false
	return account, nil
}
