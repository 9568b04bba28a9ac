// Package browser はブラウザごとの表示状態（ビューホスト）を保持する。
//
// 各ブラウザはCookieのIDで識別され、専用のセッションクライアント・通知・メニュー開閉状態・
// アップロードフォームの選択状態を持つ。
package browser

import (
	"sync"
	"time"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/payroll"
	"github.com/hitoshi/payrollpro/internal/session"
)

// State は1つのブラウザの表示状態。
type State struct {
	ID   string
	Auth *session.Client

	mu       sync.Mutex
	notices  []model.Notice
	menuOpen bool
	upload   payroll.UploadForm
	lastSeen time.Time
}

// AddNotice は次の画面表示で表示する通知を追加する。
func (s *State) AddNotice(n model.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

// TakeNotices は溜まっている通知を返し、空にする。
func (s *State) TakeNotices() []model.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notices
	s.notices = nil
	return n
}

// MenuOpen は折りたたみメニューが開いているかを返す。
func (s *State) MenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuOpen
}

// ToggleMenu はメニューの開閉を切り替え、切り替え後の状態を返す。
func (s *State) ToggleMenu() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuOpen = !s.menuOpen
	return s.menuOpen
}

// UploadForm はアップロードフォームの選択状態のコピーを返す。
func (s *State) UploadForm() payroll.UploadForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// UpdateUploadForm はアップロードフォームの選択状態を更新する。
func (s *State) UpdateUploadForm(fn func(f *payroll.UploadForm)) payroll.UploadForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.upload)
	return s.upload
}

// touch は最終アクセス時刻を更新する。
func (s *State) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// LastSeen は最終アクセス時刻を返す。
func (s *State) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
