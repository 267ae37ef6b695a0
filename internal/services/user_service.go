// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Corphon/ScriptCraftAI/internal/auth"
	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const loginFailedMessage = "邮箱或密码错误"

// UserRepository 用户持久化
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id string, nickname, avatarURL *string) (*models.User, error)
}

// SessionManager 登录会话存储
type SessionManager interface {
	Create(ctx context.Context, user *models.UserDTO) (string, error)
	UpdateUser(ctx context.Context, user *models.UserDTO) error
	DestroyAllForUser(ctx context.Context, userID string) (int, error)
}

// TokenIssuer 签发 JWT
type TokenIssuer interface {
	Issue(userID, email, sessionID string) (string, error)
}

// ProfileUpdate 资料更新，nil 字段保持不变
type ProfileUpdate struct {
	Nickname  *string
	AvatarURL *string
}

// UserService 处理用户注册、登录与资料
type UserService struct {
	users    UserRepository
	sessions SessionManager
	tokens   TokenIssuer
	now      func() time.Time
}

// NewUserService 创建用户服务
func NewUserService(users UserRepository, sessions SessionManager, tokens TokenIssuer) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// defaultNickname 取邮箱 @ 前的部分
func (s *UserService) defaultNickname(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return fmt.Sprintf("用户%d", s.now().UnixMilli())
}

// Register 注册新用户
func (s *UserService) Register(ctx context.Context, email, password, nickname string) (*models.UserDTO, error) {
	email = normalizeEmail(email)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewProcessingError("注册失败", err)
	}
	if exists {
		return nil, apperrors.NewValidationError("该邮箱已被注册", nil)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewProcessingError("注册失败", err)
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = s.defaultNickname(email)
	}

	user := &models.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		Nickname:     nickname,
		Status:       models.UserStatusEnabled,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, apperrors.NewValidationError("该邮箱已被注册", err)
		}
		return nil, apperrors.NewProcessingError("注册失败", err)
	}

	utils.GetLogger().Info("用户注册成功", map[string]interface{}{
		"user_id": user.ID,
	})
	return user.ToDTO(), nil
}

// Login 校验密码，创建会话并签发以会话为 sid 的 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError(loginFailedMessage, nil)
		}
		return nil, apperrors.NewProcessingError("登录失败", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewProcessingError("登录失败", err)
	}
	if !ok {
		return nil, apperrors.NewUnauthorizedError(loginFailedMessage, nil)
	}
	if !user.Enabled() {
		return nil, apperrors.NewForbiddenError("账号已被禁用，请联系管理员", nil)
	}

	dto := user.ToDTO()
	sessionToken, err := s.sessions.Create(ctx, dto)
	if err != nil {
		return nil, apperrors.NewProcessingError("登录失败", err)
	}
	token, err := s.tokens.Issue(user.ID, user.Email, sessionToken)
	if err != nil {
		return nil, apperrors.NewProcessingError("登录失败", err)
	}

	utils.GetLogger().Info("用户登录", map[string]interface{}{
		"user_id": user.ID,
	})
	return &models.LoginResult{Token: token, User: dto}, nil
}

// GetUserByID 按 ID 查询用户
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*models.UserDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("用户不存在", err)
		}
		return nil, apperrors.NewProcessingError("查询用户失败", err)
	}
	return user.ToDTO(), nil
}

// GetUserByEmail 按邮箱查询用户
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.UserDTO, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("用户不存在", err)
		}
		return nil, apperrors.NewProcessingError("查询用户失败", err)
	}
	return user.ToDTO(), nil
}

// UpdateProfile 更新昵称与头像，并同步到该用户的所有会话快照
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.UserDTO, error) {
	if update.Nickname != nil {
		trimmed := strings.TrimSpace(*update.Nickname)
		if trimmed == "" {
			return nil, apperrors.NewValidationError("昵称不能为空", nil)
		}
		update.Nickname = &trimmed
	}

	user, err := s.users.UpdateProfile(ctx, userID, update.Nickname, update.AvatarURL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("用户不存在", err)
		}
		return nil, apperrors.NewProcessingError("更新资料失败", err)
	}

	dto := user.ToDTO()
	if err := s.sessions.UpdateUser(ctx, dto); err != nil {
		// 资料已经落库，会话快照会在下次登录时更新
		utils.GetLogger().Warn("同步会话用户信息失败", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return dto, nil
}

// Logout 销毁该用户的全部会话，已签发的 JWT 随之失效
func (s *UserService) Logout(ctx context.Context, userID string) error {
	count, err := s.sessions.DestroyAllForUser(ctx, userID)
	if err != nil {
		return apperrors.NewProcessingError("退出登录失败", err)
	}
	utils.GetLogger().Info("用户退出登录", map[string]interface{}{
		"user_id":  userID,
		"sessions": count,
	})
	return nil
}
