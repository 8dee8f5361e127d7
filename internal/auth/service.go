package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/shared"
	"github.com/payflow-app/payflow/internal/users"
)

// Mailer enqueues transactional email. Implemented by the jobs client.
type Mailer interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

// Service issues and verifies one-time login codes.
type Service struct {
	repo   Repository
	users  users.Repository
	mailer Mailer
	router *notify.Router
	secret string
	ttl    time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs a Service. secret peppers the code before hashing so
// a leaked table alone cannot be brute-forced offline against 6 digits.
func NewService(repo Repository, userRepo users.Repository, mailer Mailer, router *notify.Router, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  userRepo,
		mailer: mailer,
		router: router,
		secret: secret,
		ttl:    ttl,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// RequestCode issues a fresh code for the account behind the email and sends
// it out. Unknown emails succeed silently so the endpoint cannot be used to
// enumerate accounts.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.log().Info("login code requested for unknown email")
		return nil
	}
	if !user.IsActive {
		s.log().Info("login code requested for inactive account", slog.Int64("user_id", user.ID))
		return nil
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate login code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.secret+code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash login code: %w", err)
	}

	if err := s.repo.InvalidateForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("invalidate previous codes: %w", err)
	}
	expiresAt := s.clock().Add(s.ttl)
	if err := s.repo.Create(ctx, user.ID, hash, expiresAt); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}

	if err := s.mailer.EnqueueEmail(ctx, user.Email, "Your PayFlow login code",
		fmt.Sprintf("Your login code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))); err != nil {
		return fmt.Errorf("enqueue login code mail: %w", err)
	}

	if s.router != nil {
		_, err := s.router.RouteToUser(ctx, notify.EventLoginCode, notify.Recipient{
			ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, Department: user.Department,
		}, "Login code sent", "A login code was sent to your email address")
		if err != nil {
			s.log().Warn("route login code notification", slog.Any("error", err))
		}
	}
	return nil
}

// VerifyCode checks a submitted code and consumes it on success.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCode
	}
	stored, err := s.repo.LatestActive(ctx, user.ID, s.clock())
	if err != nil {
		return nil, shared.ErrInvalidCode
	}
	if bcrypt.CompareHashAndPassword(stored.CodeHash, []byte(s.secret+code)) != nil {
		return nil, shared.ErrInvalidCode
	}
	if err := s.repo.MarkConsumed(ctx, stored.ID); err != nil {
		// Lost the race with a concurrent verify; the code is single-use.
		return nil, shared.ErrInvalidCode
	}
	return user, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
