package auth

import (
	"context"
	"testing"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/storage/memory"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	testFullName = "Test User"
	testUsername = "testuser1"
	testEmail    = "testuser1@example.com"
	testPassword = "Test1234"
)

func setup(t *testing.T) storage.StorageInterface {
	t.Helper()
	store := memory.NewMemoryStorage()
	Init(store, "test-signing-key")
	return store
}

func signUpInput() SignUpInput {
	return SignUpInput{
		FullName: testFullName,
		Username: testUsername,
		Email:    testEmail,
		Password: testPassword,
	}
}

func TestSignUp(t *testing.T) {
	setup(t)
	ctx := context.Background()

	user, tokens, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	assert.Equal(t, testUsername, user.Username)
	assert.Equal(t, testEmail, user.Email)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.Equal(t, 1, user.Level)
	assert.Equal(t, 0, user.XP)
	assert.Empty(t, user.Badges)
	assert.NotEmpty(t, tokens.AuthToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestSignUpValidation(t *testing.T) {
	setup(t)
	ctx := context.Background()

	short := signUpInput()
	short.Username = "x"
	_, _, err := SignUp(ctx, short)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	badEmail := signUpInput()
	badEmail.Email = "not-an-email"
	_, _, err = SignUp(ctx, badEmail)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	weak := signUpInput()
	weak.Password = "short"
	_, _, err = SignUp(ctx, weak)
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestSignUpDuplicateRejected(t *testing.T) {
	setup(t)
	ctx := context.Background()

	_, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	sameEmail := signUpInput()
	sameEmail.Username = "otheruser"
	_, _, err = SignUp(ctx, sameEmail)
	assert.True(t, apierr.Is(err, apierr.KindConflict))

	sameUsername := signUpInput()
	sameUsername.Email = "other@example.com"
	_, _, err = SignUp(ctx, sameUsername)
	assert.True(t, apierr.Is(err, apierr.KindConflict))
}

func TestSignInRoundTrip(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	user, tokens, err := SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, tokens.AuthToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestSignInWrongPassword(t *testing.T) {
	setup(t)
	ctx := context.Background()

	_, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	_, _, err = SignIn(ctx, testEmail, "Wrong1234")
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, _, err = SignIn(ctx, "unknown@example.com", testPassword)
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestRefreshTokenRotation(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	user, tokens, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	rotated, err := RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AuthToken)

	// The stored refresh token is replaced by the rotation.
	stored, err := store.FindUser(ctx, bson.M{"_id": user.ID})
	require.NoError(t, err)
	assert.Equal(t, rotated.RefreshToken, stored.RefreshToken)
}

func TestRefreshTokenRejectedAfterSignOut(t *testing.T) {
	setup(t)
	ctx := context.Background()

	user, tokens, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	require.NoError(t, SignOut(ctx, user.ID))

	_, err = RefreshToken(ctx, tokens.RefreshToken)
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestRefreshTokenGarbageRejected(t *testing.T) {
	setup(t)

	_, err := RefreshToken(context.Background(), "not.a.jwt")
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestChangePassword(t *testing.T) {
	setup(t)
	ctx := context.Background()

	user, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	err = ChangePassword(ctx, user.ID, "Wrong1234", "NewPass123")
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	require.NoError(t, ChangePassword(ctx, user.ID, testPassword, "NewPass123"))

	_, _, err = SignIn(ctx, testEmail, testPassword)
	assert.Error(t, err)
	_, _, err = SignIn(ctx, testEmail, "NewPass123")
	assert.NoError(t, err)
}

func TestCurrentUser(t *testing.T) {
	setup(t)
	ctx := context.Background()

	user, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	found, err := CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, testUsername, found.Username)
}

func TestUpdateAccount(t *testing.T) {
	setup(t)
	ctx := context.Background()

	user, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	updated, err := UpdateAccount(ctx, user.ID, UpdateAccountInput{FullName: "New Name", Avatar: "crescent"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, "crescent", updated.Avatar)

	_, err = UpdateAccount(ctx, user.ID, UpdateAccountInput{})
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestUpdateAccountRejectsTakenUsername(t *testing.T) {
	setup(t)
	ctx := context.Background()

	first, _, err := SignUp(ctx, signUpInput())
	require.NoError(t, err)

	second := signUpInput()
	second.Username = "seconduser"
	second.Email = "second@example.com"
	other, _, err := SignUp(ctx, second)
	require.NoError(t, err)

	_, err = UpdateAccount(ctx, other.ID, UpdateAccountInput{Username: first.Username})
	assert.True(t, apierr.Is(err, apierr.KindConflict))

	_, err = UpdateAccount(ctx, other.ID, UpdateAccountInput{Email: testEmail})
	assert.True(t, apierr.Is(err, apierr.KindConflict))
}
