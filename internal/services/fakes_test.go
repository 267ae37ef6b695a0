package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
)

// memoryScriptRepo 内存版 ScriptRepository，读取返回副本
type memoryScriptRepo struct {
	mu       sync.Mutex
	sessions map[string]models.ScriptSession
	versions map[string]models.ScriptVersion
	clock    time.Time

	failCreateVersions error
}

func newMemoryScriptRepo() *memoryScriptRepo {
	return &memoryScriptRepo{
		sessions: make(map[string]models.ScriptSession),
		versions: make(map[string]models.ScriptVersion),
		clock:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
	}
}

// tick 单调递增的时间，保证创建顺序可比较
func (r *memoryScriptRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryScriptRepo) CreateSession(_ context.Context, session *models.ScriptSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.tick()
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *memoryScriptRepo) FindSession(_ context.Context, id string) (*models.ScriptSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", storage.ErrNotFound, id)
	}
	return &session, nil
}

func (r *memoryScriptRepo) CreateVersions(_ context.Context, versions []*models.ScriptVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateVersions != nil {
		return r.failCreateVersions
	}
	for _, v := range versions {
		now := r.tick()
		v.CreatedAt, v.UpdatedAt = now, now
		r.versions[v.ID] = *v
	}
	return nil
}

func (r *memoryScriptRepo) FindVersion(_ context.Context, id string) (*models.ScriptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version, ok := r.versions[id]
	if !ok {
		return nil, fmt.Errorf("%w: version %s", storage.ErrNotFound, id)
	}
	return &version, nil
}

func (r *memoryScriptRepo) ListVersions(_ context.Context, sessionID string) ([]models.ScriptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScriptVersion
	for _, v := range r.versions {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionIndex < out[j].VersionIndex })
	return out, nil
}

func (r *memoryScriptRepo) SaveContent(_ context.Context, version *models.ScriptVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.versions[version.ID]
	if !ok {
		return fmt.Errorf("%w: version %s", storage.ErrNotFound, version.ID)
	}
	version.UpdatedAt = r.tick()
	stored.Title = version.Title
	stored.ContentJSON = version.ContentJSON
	stored.WordCount = version.WordCount
	stored.SceneCount = version.SceneCount
	stored.LockedScenes = version.LockedScenes
	stored.UpdatedAt = version.UpdatedAt
	r.versions[version.ID] = stored
	return nil
}

func (r *memoryScriptRepo) SaveLockedScenes(_ context.Context, version *models.ScriptVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.versions[version.ID]
	if !ok {
		return fmt.Errorf("%w: version %s", storage.ErrNotFound, version.ID)
	}
	version.UpdatedAt = r.tick()
	stored.LockedScenes = version.LockedScenes
	stored.UpdatedAt = version.UpdatedAt
	r.versions[version.ID] = stored
	return nil
}

func (r *memoryScriptRepo) SelectVersion(_ context.Context, sessionID, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.versions[versionID]
	if !ok || target.SessionID != sessionID {
		return fmt.Errorf("%w: version %s", storage.ErrNotFound, versionID)
	}
	for id, v := range r.versions {
		if v.SessionID == sessionID {
			v.IsSelected = id == versionID
			r.versions[id] = v
		}
	}
	return nil
}

func (r *memoryScriptRepo) ListSessions(_ context.Context, userID, videoType string, offset, limit int) ([]storage.SessionSummary, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.ScriptSession
	for _, s := range r.sessions {
		if s.UserID != userID || (videoType != "" && s.VideoType != videoType) {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]storage.SessionSummary, 0, end-offset)
	for _, s := range matched[offset:end] {
		count := 0
		for _, v := range r.versions {
			if v.SessionID == s.ID {
				count++
			}
		}
		out = append(out, storage.SessionSummary{ScriptSession: s, VersionCount: count})
	}
	return out, total, nil
}

func (r *memoryScriptRepo) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	delete(r.sessions, sessionID)
	for id, v := range r.versions {
		if v.SessionID == sessionID {
			delete(r.versions, id)
		}
	}
	return nil
}

func (r *memoryScriptRepo) versionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.versions)
}

// fakeAI 可编程的 AIClient
type fakeAI struct {
	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, call int, prompt string) (*llm.CompletionResponse, error)
}

func (f *fakeAI) Complete(ctx context.Context, prompt string) (*llm.CompletionResponse, error) {
	call := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(ctx, call, prompt)
}

func (f *fakeAI) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// respondWith 每次调用都返回 content 的 JSON 文本
func respondWith(content *models.ScriptContent) func(context.Context, int, string) (*llm.CompletionResponse, error) {
	return func(context.Context, int, string) (*llm.CompletionResponse, error) {
		data, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{Text: string(data)}, nil
	}
}

// sampleContent 带 n 个分镜的脚本，prefix 用于区分不同版本
func sampleContent(prefix string, n int) *models.ScriptContent {
	content := &models.ScriptContent{
		Title:             prefix + "标题",
		AlternativeTitles: []string{prefix + "备选1", prefix + "备选2"},
		VideoElements: models.VideoElements{
			BgmStyle:         "轻快",
			ShootingLocation: "室内",
			Effects:          "转场",
		},
		EndingCTA: []string{"点赞关注"},
	}
	for i := 0; i < n; i++ {
		content.Scenes = append(content.Scenes, models.Scene{
			TimeRange:         fmt.Sprintf("%d-%ds", i*10, (i+1)*10),
			VisualDescription: fmt.Sprintf("%s画面%d", prefix, i),
			Voiceover:         fmt.Sprintf("%s旁白%d", prefix, i),
			Subtitle:          fmt.Sprintf("%s字幕%d", prefix, i),
		})
	}
	return content
}

// memoryUserRepo 内存版 UserRepository
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]models.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return storage.ErrDuplicateEmail
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memoryUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *memoryUserRepo) UpdateProfile(_ context.Context, id string, nickname, avatarURL *string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if nickname != nil {
		u.Nickname = *nickname
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	r.users[id] = u
	return &u, nil
}

func (r *memoryUserRepo) setStatus(id string, status models.UserStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.Status = status
	r.users[id] = u
}

// fakeSessions 记录调用的 SessionManager
type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*models.UserDTO
	updateErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*models.UserDTO)}
}

func (f *fakeSessions) Create(_ context.Context, user *models.UserDTO) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := fmt.Sprintf("sess-%d", len(f.sessions)+1)
	copied := *user
	f.sessions[token] = &copied
	return token, nil
}

func (f *fakeSessions) UpdateUser(_ context.Context, user *models.UserDTO) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for token, u := range f.sessions {
		if u.ID == user.ID {
			copied := *user
			f.sessions[token] = &copied
		}
	}
	return nil
}

func (f *fakeSessions) DestroyAllForUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for token, u := range f.sessions {
		if u.ID == userID {
			delete(f.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeTokens 把参数拼接成 token，便于断言
type fakeTokens struct{}

func (fakeTokens) Issue(userID, email, sessionID string) (string, error) {
	return strings.Join([]string{"jwt", userID, email, sessionID}, "|"), nil
}
