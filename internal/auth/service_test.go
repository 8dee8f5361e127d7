package auth

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payflow-app/payflow/internal/shared"
	"github.com/payflow-app/payflow/internal/users"
)

type fakeCodes struct {
	seq   int64
	items map[int64]*LoginCode
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{items: make(map[int64]*LoginCode)}
}

func (f *fakeCodes) Create(_ context.Context, userID int64, codeHash []byte, expiresAt time.Time) error {
	f.seq++
	f.items[f.seq] = &LoginCode{
		ID: f.seq, UserID: userID, CodeHash: codeHash,
		ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeCodes) LatestActive(_ context.Context, userID int64, now time.Time) (*LoginCode, error) {
	var latest *LoginCode
	for _, code := range f.items {
		if code.UserID != userID || code.Consumed || !code.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || code.CreatedAt.After(latest.CreatedAt) {
			latest = code
		}
	}
	if latest == nil {
		return nil, shared.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeCodes) MarkConsumed(_ context.Context, id int64) error {
	code, ok := f.items[id]
	if !ok || code.Consumed {
		return shared.ErrNotFound
	}
	code.Consumed = true
	return nil
}

func (f *fakeCodes) InvalidateForUser(_ context.Context, userID int64) error {
	for _, code := range f.items {
		if code.UserID == userID {
			code.Consumed = true
		}
	}
	return nil
}

type fakeUsers struct {
	byEmail map[string]*users.User
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*users.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, _ users.ListUsersRequest) ([]users.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUsers) ListByRoles(_ context.Context, _ ...shared.Role) ([]users.User, error) {
	return nil, nil
}

func (f *fakeUsers) ListManagersByDepartment(_ context.Context, _ string) ([]users.User, error) {
	return nil, nil
}

func (f *fakeUsers) Create(_ context.Context, _ users.User) (int64, error) { return 0, nil }

func (f *fakeUsers) Update(_ context.Context, _ int64, _ map[string]any) error { return nil }

func (f *fakeUsers) Delete(_ context.Context, _ int64) error { return nil }

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) EnqueueEmail(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, body)
	return nil
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func authFixture(t *testing.T) (*Service, *fakeCodes, *fakeMailer) {
	t.Helper()
	userRepo := &fakeUsers{byEmail: map[string]*users.User{
		"budi@payflow.app": {ID: 1, Email: "budi@payflow.app", Name: "Budi", Role: shared.RoleITStaff, Department: "IT", IsActive: true},
		"gone@payflow.app": {ID: 2, Email: "gone@payflow.app", Name: "Gone", Role: shared.RoleITStaff, Department: "IT", IsActive: false},
	}}
	codes := newFakeCodes()
	mailer := &fakeMailer{}
	svc := NewService(codes, userRepo, mailer, nil, "pepper", 15*time.Minute, slog.Default())
	return svc, codes, mailer
}

func issuedCode(t *testing.T, mailer *fakeMailer) string {
	t.Helper()
	require.NotEmpty(t, mailer.sent)
	match := codePattern.FindStringSubmatch(mailer.sent[len(mailer.sent)-1])
	require.Len(t, match, 2, "mail body should carry a 6-digit code")
	return match[1]
}

func TestRequestThenVerifyCode(t *testing.T) {
	svc, _, mailer := authFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "budi@payflow.app"))
	code := issuedCode(t, mailer)

	user, err := svc.VerifyCode(ctx, "budi@payflow.app", code)
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	// Single use.
	_, err = svc.VerifyCode(ctx, "budi@payflow.app", code)
	require.ErrorIs(t, err, shared.ErrInvalidCode)
}

func TestVerifyWrongCode(t *testing.T) {
	svc, _, _ := authFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "budi@payflow.app"))
	_, err := svc.VerifyCode(ctx, "budi@payflow.app", "000000")
	if err == nil {
		// One-in-a-million collision with the generated code; not a failure
		// worth flaking over, but the sentinel path is what we assert.
		t.Skip("generated code was 000000")
	}
	require.ErrorIs(t, err, shared.ErrInvalidCode)
}

func TestVerifyExpiredCode(t *testing.T) {
	svc, codes, mailer := authFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "budi@payflow.app"))
	code := issuedCode(t, mailer)
	for _, stored := range codes.items {
		stored.ExpiresAt = time.Now().Add(-time.Minute)
	}

	_, err := svc.VerifyCode(ctx, "budi@payflow.app", code)
	require.ErrorIs(t, err, shared.ErrInvalidCode)
}

func TestNewRequestSupersedesOldCode(t *testing.T) {
	svc, _, mailer := authFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "budi@payflow.app"))
	first := issuedCode(t, mailer)
	require.NoError(t, svc.RequestCode(ctx, "budi@payflow.app"))
	second := issuedCode(t, mailer)

	if first != second {
		_, err := svc.VerifyCode(ctx, "budi@payflow.app", first)
		require.ErrorIs(t, err, shared.ErrInvalidCode)
	}
	_, err := svc.VerifyCode(ctx, "budi@payflow.app", second)
	require.NoError(t, err)
}

func TestUnknownAndInactiveEmailsQuietlySucceed(t *testing.T) {
	svc, codes, mailer := authFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "nobody@payflow.app"))
	require.NoError(t, svc.RequestCode(ctx, "gone@payflow.app"))
	require.Empty(t, mailer.sent)
	require.Empty(t, codes.items)
}
