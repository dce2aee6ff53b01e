package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

func newAuthFixture() (*AuthService, *fakeUserRepo) {
	users := newFakeUserRepo()
	tokens := auth.NewTokenManager("test-secret", 60)
	return NewAuthService(users, tokens, bcrypt.MinCost), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "Alice@Example.com", "hunter2-secure")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, domain.RoleMember, registered.User.Role)
	assert.Equal(t, "alice@example.com", registered.User.Email)

	loggedIn, err := svc.Login(ctx, "alice@example.com", "hunter2-secure")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2-secure")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice2", "alice@example.com", "hunter2-secure")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"), "got %v", err)
}

func TestRegisterShortPasswordRejected(t *testing.T) {
	svc, _ := newAuthFixture()
	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "short")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "got %v", err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2-secure")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"), "got %v", err)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever1")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"), "got %v", err)
}

func TestLoginBannedAccountForbidden(t *testing.T) {
	svc, users := newAuthFixture()
	ctx := context.Background()
	registered, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2-secure")
	require.NoError(t, err)

	reason := "spam"
	require.NoError(t, users.SetBanned(ctx, registered.User.ID, true, &reason, nil))

	_, err = svc.Login(ctx, "alice@example.com", "hunter2-secure")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)
}
