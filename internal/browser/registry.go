package browser

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/payrollpro/internal/session"
)

// ClientFactory はブラウザ専用のセッションクライアントを生成する関数。
type ClientFactory func() *session.Client

// Registry はブラウザIDから表示状態を引く。
type Registry struct {
	newClient ClientFactory
	now       func() time.Time

	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry はRegistryを生成する。
func NewRegistry(newClient ClientFactory) *Registry {
	return &Registry{
		newClient: newClient,
		now:       time.Now,
		states:    make(map[string]*State),
	}
}

// Get は既存の表示状態を返し、最終アクセス時刻を更新する。
func (r *Registry) Get(id string) (*State, bool) {
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	s, ok := r.states[id]
	r.mu.Unlock()

	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Create は新しいIDで表示状態を生成して登録する。
func (r *Registry) Create() *State {
	s := &State{
		ID:   uuid.NewString(),
		Auth: r.newClient(),
	}
	s.touch(r.now())

	r.mu.Lock()
	r.states[s.ID] = s
	r.mu.Unlock()
	return s
}

// Len は登録されている表示状態の数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Reap は最終アクセスからidleTTL以上経過した表示状態を削除し、セッションクライアントを閉じる。
// 削除した件数を返す。
func (r *Registry) Reap(idleTTL time.Duration) int {
	cutoff := r.now().Add(-idleTTL)

	r.mu.Lock()
	var expired []*State
	for id, s := range r.states {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(r.states, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Auth.Close()
		slog.Debug("browser state reaped", slog.String("browser_id", s.ID))
	}
	return len(expired)
}

// CloseAll は全表示状態を削除し、セッションクライアントを閉じる。シャットダウン時に使用する。
func (r *Registry) CloseAll() {
	r.mu.Lock()
	states := r.states
	r.states = make(map[string]*State)
	r.mu.Unlock()

	for _, s := range states {
		s.Auth.Close()
	}
}
