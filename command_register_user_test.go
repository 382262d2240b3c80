package custody_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/gyber/go-custody"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserHandler_Validation(t *testing.T) {
	handler := custody.NewRegisterUserHandler(newRepo(t)).WithLogger(testLogger{})

	tests := []struct {
		name    string
		msg     custody.RegisterUserMessage
		message string
	}{
		{
			name:    "empty username",
			msg:     custody.RegisterUserMessage{Password: "secret"},
			message: "Username Should Contain Only Letters",
		},
		{
			name:    "username with symbols",
			msg:     custody.RegisterUserMessage{Username: "al ice!", Password: "secret"},
			message: "Username Should Contain Only Letters",
		},
		{
			name:    "username starting with a digit",
			msg:     custody.RegisterUserMessage{Username: "1alice", Password: "secret"},
			message: "Username Should Contain Only Letters",
		},
		{
			name:    "short password",
			msg:     custody.RegisterUserMessage{Username: "alice", Password: "1234"},
			message: "Password Can Not Contain Less Than 5 Symbols",
		},
		{
			name:    "bad email",
			msg:     custody.RegisterUserMessage{Username: "alice", Password: "secret", Email: "nope"},
			message: "Email Is Not Valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := handler.Execute(context.Background(), tt.msg)
			require.Error(t, err)
			assert.Nil(t, user)

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, custody.TextCodeValidation, richErr.TextCode)
			assert.Equal(t, 422, richErr.Code)
			assert.Equal(t, tt.message, richErr.Message)
		})
	}
}

func TestRegisterUserHandler_Execute(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	sink := &MockActivitySink{}
	sink.On("Record", mock.Anything, eventOf(custody.ActivityEventSignup)).Return(nil).Once()

	handler := custody.NewRegisterUserHandler(repo).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	user, err := handler.Execute(ctx, custody.RegisterUserMessage{
		Username: " alice ",
		Email:    "alice@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "secret", user.PasswordHash)

	stored, err := repo.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.IsVerified)
	assert.False(t, stored.IsAdmin)
	assert.Empty(t, stored.Chains)
	assert.True(t, custody.VerifyPassword("secret", stored.PasswordHash))

	t.Run("duplicate username", func(t *testing.T) {
		_, err := handler.Execute(ctx, custody.RegisterUserMessage{Username: "alice", Password: "secret"})
		assert.True(t, custody.HasTextCode(err, custody.TextCodeConflict))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := handler.Execute(ctx, custody.RegisterUserMessage{
			Username: "bob",
			Email:    "alice@example.com",
			Password: "secret",
		})
		assert.True(t, custody.HasTextCode(err, custody.TextCodeConflict))
	})

	t.Run("without email", func(t *testing.T) {
		sink.On("Record", mock.Anything, eventOf(custody.ActivityEventSignup)).Return(nil).Once()
		user, err := handler.Execute(ctx, custody.RegisterUserMessage{Username: "carol", Password: "secret"})
		require.NoError(t, err)
		assert.Empty(t, user.Email)
	})

	sink.AssertExpectations(t)
}

func TestRegisterUserHandler_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := custody.NewRegisterUserHandler(newRepo(t)).Execute(ctx, custody.RegisterUserMessage{
		Username: "alice",
		Password: "secret",
	})
	assert.Error(t, err)
}
