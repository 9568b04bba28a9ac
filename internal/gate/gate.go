// Package gate は保護ページの表示可否を決めるセッションゲートを提供する。
//
// Gateはマウント時にセッション変化通知を購読し、続けて1回だけ非同期のセッション照会を行う。
// 状態はChecking→Unauthenticated|Authenticatedへ遷移し、以後は通知によって
// AuthenticatedとUnauthenticatedの間を行き来する。
//
// 照会の結果より先に通知が届いた場合は通知を優先し、遅れて届いた照会結果は破棄する。
// Dispose後に届いた照会結果や通知はすべて無視する。
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/payrollpro/internal/session"
)

// State はゲートの状態を表す。
type State int

const (
	// Checking は初回のセッション照会が未完了であることを示す。
	Checking State = iota
	// Unauthenticated はセッションがないことを示す。
	Unauthenticated
	// Authenticated はセッションがあることを示す。
	Authenticated
)

// String は状態名を返す。ログとメトリクスのラベルに使用する。
func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrDisposed はDispose済みのGateをAwaitした場合のエラー。
var ErrDisposed = errors.New("gate is disposed")

// Source はセッションをpullとpushの両方で公開するインターフェース。
// *session.Clientが満たす。
type Source interface {
	GetSession(ctx context.Context) (*session.Session, error)
	OnAuthChange(l session.Listener) *session.Subscription
}

// Gate は1回のマウントに対応するセッションゲート。使い回さない。
type Gate struct {
	source Source

	mu       sync.Mutex
	state    State
	current  *session.Session
	changed  chan struct{}
	sub      *session.Subscription
	mounted  bool
	disposed bool
	notified bool
	checkErr error
}

// New はChecking状態のGateを生成する。
func New(source Source) *Gate {
	return &Gate{
		source:  source,
		state:   Checking,
		changed: make(chan struct{}),
	}
}

// Mount は通知を購読し、初回のセッション照会を別ゴルーチンで開始する。
// 2回目以降の呼び出しとDispose後の呼び出しは何もしない。
func (g *Gate) Mount(ctx context.Context) {
	g.mu.Lock()
	if g.mounted || g.disposed {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.mu.Unlock()

	sub := g.source.OnAuthChange(g.onAuthChange)

	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	g.sub = sub
	g.mu.Unlock()

	go g.check(ctx)
}

// check は初回のセッション照会を行う。照会エラーはUnauthenticatedとして扱う。
func (g *Gate) check(ctx context.Context) {
	s, err := g.source.GetSession(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed || g.notified {
		return
	}
	g.checkErr = err
	if err != nil {
		s = nil
	}
	g.transitionLocked(s)
}

// onAuthChange は通知を受けて状態を更新する。
func (g *Gate) onAuthChange(_ session.Event, s *session.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed {
		return
	}
	g.notified = true
	g.transitionLocked(s)
}

// transitionLocked はセッションの有無に応じて状態を設定し、待機者を起こす。
// g.muを保持した状態で呼び出すこと。
func (g *Gate) transitionLocked(s *session.Session) {
	g.current = s
	if s != nil {
		g.state = Authenticated
	} else {
		g.state = Unauthenticated
	}
	close(g.changed)
	g.changed = make(chan struct{})
}

// State は現在の状態を返す。
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session はAuthenticatedの場合に現在のセッションを返す。それ以外はnilを返す。
func (g *Gate) Session() *session.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Authenticated || g.current == nil {
		return nil
	}
	cp := *g.current
	return &cp
}

// CheckError は初回照会が失敗した場合のエラーを返す。
func (g *Gate) CheckError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkErr
}

// Await は状態がCheckingを抜けるか、ctxが終了するまで待機する。
// ctxが先に終了した場合はその時点の状態とctx.Err()を返す。
func (g *Gate) Await(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		state, ch, disposed := g.state, g.changed, g.disposed
		g.mu.Unlock()

		if state != Checking {
			return state, nil
		}
		if disposed {
			return state, ErrDisposed
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Dispose は購読を解除する。以後の照会結果と通知は無視する。複数回呼び出しても安全。
func (g *Gate) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	sub := g.sub
	g.sub = nil
	close(g.changed)
	g.changed = make(chan struct{})
	g.mu.Unlock()

	sub.Unsubscribe()
}
