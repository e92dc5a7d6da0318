package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func registerInput() RegisterInput {
	return RegisterInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse battery",
	}
}

func TestRegister(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(users, testSecret)

	resp, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.Equal(t, "alice", resp.User.Username)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEqual(t, "correct horse battery", resp.User.PasswordHash)

	// The token is signed with our secret and carries the user ID.
	token, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	sub, err := token.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, resp.User.ID.String(), sub)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(users, testSecret)

	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Username = "alice2"
	_, err = svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(users, testSecret)

	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Email = "alice2@example.com"
	_, err = svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(users, testSecret)

	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	_, err = svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	require.ErrorIs(t, err, ErrInvalidCreds)

	_, err = svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	})
	require.ErrorIs(t, err, ErrInvalidCreds)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("hunter22hunter22")
	require.NoError(t, err)

	require.True(t, verifyPassword("hunter22hunter22", hash))
	require.False(t, verifyPassword("hunter22hunter23", hash))
	require.False(t, verifyPassword("hunter22hunter22", "not-a-hash"))

	// Same password, fresh salt, different encoding.
	hash2, err := hashPassword("hunter22hunter22")
	require.NoError(t, err)
	require.NotEqual(t, hash, hash2)
}
