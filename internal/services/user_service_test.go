package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/models"
)

func newTestUserService() (*UserService, *memoryUserRepo, *fakeSessions) {
	users := newMemoryUserRepo()
	sessions := newFakeSessions()
	return NewUserService(users, sessions, fakeTokens{}), users, sessions
}

func TestRegister(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, " Alice@Example.com ", "secret1", "")
	require.NoError(t, err)
	assert.Len(t, user.ID, 32)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.Nickname, "昵称默认取邮箱前缀")
	assert.NotEmpty(t, user.CreatedAt)

	_, err = svc.Register(ctx, "alice@example.com", "secret2", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, "该邮箱已被注册", apperrors.UserMessage(err, ""))

	named, err := svc.Register(ctx, "bob@example.com", "secret1", "  小波 ")
	require.NoError(t, err)
	assert.Equal(t, "小波", named.Nickname)
}

func TestDefaultNicknameWithoutLocalPart(t *testing.T) {
	svc, _, _ := newTestUserService()
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	assert.Equal(t, "用户1700000000123", svc.defaultNickname("@example.com"))
	assert.Equal(t, "carol", svc.defaultNickname("carol@example.com"))
}

func TestLogin(t *testing.T) {
	svc, _, sessions := newTestUserService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "secret1", "Alice")
	require.NoError(t, err)

	result, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, result.User.ID)
	assert.Equal(t, 1, sessions.count())
	assert.True(t, strings.HasSuffix(result.Token, "|sess-1"), "JWT 的 sid 是会话 token: %s", result.Token)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, _, sessions := newTestUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "secret1", "")
	require.NoError(t, err)

	var messages []string
	for _, attempt := range []struct{ email, password string }{
		{"alice@example.com", "wrong-1"},
		{"alice@example.com", "wrong-2"},
		{"nobody@example.com", "secret1"},
	} {
		_, err := svc.Login(ctx, attempt.email, attempt.password)
		require.Error(t, err)
		assert.True(t, apperrors.IsUnauthorizedError(err))
		messages = append(messages, apperrors.UserMessage(err, ""))
	}
	assert.Equal(t, []string{loginFailedMessage, loginFailedMessage, loginFailedMessage}, messages)
	assert.Equal(t, 0, sessions.count())
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, users, sessions := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "secret1", "")
	require.NoError(t, err)
	users.setStatus(user.ID, models.UserStatusDisabled)

	_, err = svc.Login(ctx, "alice@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbiddenError(err))
	assert.Equal(t, "账号已被禁用，请联系管理员", apperrors.UserMessage(err, ""))
	assert.Equal(t, 0, sessions.count())
}

func TestUpdateProfileSyncsSessions(t *testing.T) {
	svc, _, sessions := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	nickname := "新昵称"
	avatar := "https://cdn.example.com/a.png"
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Nickname: &nickname, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, nickname, updated.Nickname)
	assert.Equal(t, avatar, updated.AvatarURL)
	assert.Equal(t, nickname, sessions.sessions["sess-1"].Nickname)

	blank := "   "
	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Nickname: &blank})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.UpdateProfile(ctx, "missing", ProfileUpdate{Nickname: &nickname})
	assert.True(t, apperrors.IsNotFoundError(err))

	// 会话同步失败不影响资料更新
	sessions.updateErr = errors.New("redis down")
	other := "再改一次"
	updated, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Nickname: &other})
	require.NoError(t, err)
	assert.Equal(t, other, updated.Nickname)
}

func TestLogoutDestroysAllSessions(t *testing.T) {
	svc, _, sessions := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "secret1", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, sessions.count())

	require.NoError(t, svc.Logout(ctx, user.ID))
	assert.Equal(t, 0, sessions.count())
}

func TestGetUser(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "secret1", "")
	require.NoError(t, err)

	byID, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := svc.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = svc.GetUserByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}
