package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// SessionStore Redis 会话存储，session:<token> 保存用户快照，user_sessions:<userId> 是反向索引集合。
// 两个 key 各自过期，可能出现索引里有已过期的 token，或会话存在但索引缺失的情况：
// Refresh 会把 token 补回索引，ActiveSessions 会清理索引中的过期 token。
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore 创建会话存储
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

// TTL 会话有效期
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func userSessionsKey(userID string) string {
	return userSessionKeyPrefix + userID
}

// Create 创建会话并返回 token
func (s *SessionStore) Create(ctx context.Context, user *models.UserDTO) (string, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encode session user: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), payload, s.ttl)
		pipe.SAdd(ctx, userSessionsKey(user.ID), token)
		pipe.Expire(ctx, userSessionsKey(user.ID), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// GetUser 读取会话中的用户快照
func (s *SessionStore) GetUser(ctx context.Context, token string) (*models.UserDTO, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var user models.UserDTO
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	return &user, nil
}

// IsValid 会话是否存在
func (s *SessionStore) IsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, sessionKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Refresh 把会话和反向索引的有效期重置为完整 TTL
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	user, err := s.GetUser(ctx, token)
	if err != nil {
		return err
	}

	var refreshed *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		refreshed = pipe.Expire(ctx, sessionKey(token), s.ttl)
		pipe.SAdd(ctx, userSessionsKey(user.ID), token)
		pipe.Expire(ctx, userSessionsKey(user.ID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	// 会话在 GET 与 EXPIRE 之间过期
	if !refreshed.Val() {
		s.client.SRem(ctx, userSessionsKey(user.ID), token)
		return ErrSessionNotFound
	}
	return nil
}

// Destroy 删除单个会话
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	user, err := s.GetUser(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userSessionsKey(user.ID), token)
		return nil
	})
	return err
}

// DestroyAllForUser 删除用户的全部会话，返回删除的会话数
func (s *SessionStore) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userSessionsKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("destroy sessions of %s: %w", userID, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// ActiveSessions 返回用户仍然有效的 token，并从索引中移除已过期的 token
func (s *SessionStore) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	active := make([]string, 0, len(tokens))
	var dangling []interface{}
	for _, token := range tokens {
		ok, err := s.IsValid(ctx, token)
		if err != nil {
			return nil, err
		}
		if ok {
			active = append(active, token)
		} else {
			dangling = append(dangling, token)
		}
	}

	if len(dangling) > 0 {
		if err := s.client.SRem(ctx, userSessionsKey(userID), dangling...).Err(); err != nil {
			return nil, err
		}
		utils.GetLogger().Debug("清理过期会话索引", map[string]interface{}{
			"user_id": userID,
			"pruned":  len(dangling),
		})
	}
	return active, nil
}

// UpdateUser 用新的用户快照覆盖该用户所有有效会话，保留各自的剩余 TTL
func (s *SessionStore) UpdateUser(ctx context.Context, user *models.UserDTO) error {
	tokens, err := s.ActiveSessions(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, token := range tokens {
			pipe.SetArgs(ctx, sessionKey(token), payload, redis.SetArgs{Mode: "XX", KeepTTL: true})
		}
		return nil
	})
	if errors.Is(err, redis.Nil) {
		// XX 条件不满足，会话刚好过期
		return nil
	}
	return err
}

// OnlineCount 统计当前有效会话数
func (s *SessionStore) OnlineCount(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 200).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping 检查 Redis 连通性
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
