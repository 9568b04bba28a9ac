package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultRefreshMargin は有効期限の何秒前にリフレッシュするかのデフォルト値。
const defaultRefreshMargin = 60 * time.Second

// backgroundRefreshTimeout はタイマー起点のリフレッシュ1回あたりのタイムアウト。
const backgroundRefreshTimeout = 30 * time.Second

// ErrClosed はClose済みのClientに対して操作した場合のエラー。
var ErrClosed = errors.New("session client is closed")

// stopper はタイマー停止のインターフェース。*time.Timerが満たす。
type stopper interface {
	Stop() bool
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	// RefreshMargin は有効期限のどれだけ前にリフレッシュするか。0以下の場合はデフォルト値を使用する。
	RefreshMargin time.Duration
	Logger        *slog.Logger
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type notification struct {
	event   Event
	session *Session
}

// Client はセッション値の唯一の所有者。
// 観測者ごとにOnAuthChangeで購読し、破棄時にUnsubscribeする。
//
// 通知は発行順に配信される。リスナーの呼び出し中にClientの操作を行ってもデッドロックしない。
type Client struct {
	provider      Provider
	logger        *slog.Logger
	refreshMargin time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper

	// refreshMu はリフレッシュ呼び出しを直列化する。
	refreshMu sync.Mutex

	mu        sync.Mutex
	current   *Session
	listeners []listenerEntry
	nextID    uint64
	pending   []notification
	draining  bool
	timer     stopper
	closed    bool
}

// NewClient はClientを生成する。初期状態ではセッションを持たない。
func NewClient(provider Provider, config ClientConfig) *Client {
	margin := config.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider:      provider,
		logger:        logger,
		refreshMargin: margin,
		now:           time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// GetSession は現在のセッションを返す。セッションがない場合はnilを返す。
// 有効期限が近い場合はプロバイダーでリフレッシュしてから返す。
// リフレッシュに失敗した場合はセッションを破棄し、SIGNED_OUTを通知したうえでエラーを返す。
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !c.needsRefresh(s) {
		return copySession(s), nil
	}
	return c.refresh(ctx, s)
}

// OnAuthChange はセッション変化通知を購読する。
// 返されたSubscriptionのUnsubscribeで解除する。
func (c *Client) OnAuthChange(l Listener) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Subscription{}
	}

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})

	return NewSubscription(func() { c.removeListener(id) })
}

// SignIn はメールアドレスとパスワードでサインインする。
// 成功するとセッションを保持し、SIGNED_INを通知する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("provider returned no session")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.setLocked(s, EventSignedIn)
	c.mu.Unlock()
	c.drain()

	c.logger.Info("user signed in", slog.String("user_id", s.User.ID))
	return copySession(s), nil
}

// SignUp はアカウントを登録する。セッションは変化しない。
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	if err := c.provider.SignUp(ctx, email, password); err != nil {
		return err
	}
	c.logger.Info("user signed up")
	return nil
}

// SignOut はプロバイダーでサインアウトする。
// プロバイダー呼び出しの成否にかかわらずローカルのセッションは破棄し、SIGNED_OUTを通知する。
// プロバイダー呼び出しが失敗した場合はそのエラーを返す。
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	s := c.current
	c.mu.Unlock()

	var providerErr error
	if s != nil {
		providerErr = c.provider.SignOut(ctx, s.AccessToken)
		if providerErr != nil {
			c.logger.Error("provider sign-out failed", slog.String("error", providerErr.Error()))
		}
	}

	c.mu.Lock()
	if !c.closed && c.current != nil {
		c.setLocked(nil, EventSignedOut)
	}
	c.mu.Unlock()
	c.drain()

	return providerErr
}

// Close はタイマーを停止し、全購読を解除する。以後の操作はErrClosedを返す。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.listeners = nil
	c.pending = nil
	c.current = nil
}

// needsRefresh は有効期限のマージン内に入っているかを判定する。
func (c *Client) needsRefresh(s *Session) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !c.now().Add(c.refreshMargin).Before(s.ExpiresAt)
}

// refresh は古いセッションをリフレッシュする。
// 待機中に他の経路でセッションが置き換わっていた場合は、その値を返す。
func (c *Client) refresh(ctx context.Context, stale *Session) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	cur := c.current
	c.mu.Unlock()

	if cur != stale {
		if cur == nil {
			return nil, nil
		}
		return copySession(cur), nil
	}

	fresh, err := c.provider.RefreshSession(ctx, stale.RefreshToken)
	if err == nil && fresh == nil {
		err = fmt.Errorf("provider returned no session")
	}
	if err != nil {
		// 呼び出し元のキャンセルはセッション失効とみなさない
		if ctx.Err() != nil {
			return nil, fmt.Errorf("session refresh interrupted: %w", ctx.Err())
		}
		c.replace(stale, nil, EventSignedOut)
		c.logger.Warn("session refresh failed, session cleared",
			slog.String("user_id", stale.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if !c.replace(stale, fresh, EventTokenRefreshed) {
		c.mu.Lock()
		cur = c.current
		c.mu.Unlock()
		if cur == nil {
			return nil, nil
		}
		return copySession(cur), nil
	}
	return copySession(fresh), nil
}

// replace は現在のセッションがexpectedのままである場合に限りnextへ置き換え、通知する。
func (c *Client) replace(expected, next *Session, event Event) bool {
	c.mu.Lock()
	if c.closed || c.current != expected {
		c.mu.Unlock()
		return false
	}
	c.setLocked(next, event)
	c.mu.Unlock()
	c.drain()
	return true
}

// setLocked はセッションを置き換え、リフレッシュタイマーを再設定し、通知をキューに積む。
// c.muを保持した状態で呼び出すこと。
func (c *Client) setLocked(next *Session, event Event) {
	c.current = next

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if next != nil && !next.ExpiresAt.IsZero() {
		d := next.ExpiresAt.Sub(c.now()) - c.refreshMargin
		if d < 0 {
			d = 0
		}
		c.timer = c.afterFunc(d, func() { c.backgroundRefresh(next) })
	}

	c.pending = append(c.pending, notification{event: event, session: copySession(next)})
}

// backgroundRefresh はタイマー起点でセッションをリフレッシュする。
func (c *Client) backgroundRefresh(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
	defer cancel()

	if _, err := c.refresh(ctx, s); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Warn("background session refresh failed", slog.String("error", err.Error()))
	}
}

// drain はキューに積まれた通知を発行順にリスナーへ配信する。
// 既に他のゴルーチンが配信中の場合は何もしない（配信中のゴルーチンが引き継ぐ）。
func (c *Client) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.pending) > 0 {
		n := c.pending[0]
		c.pending = c.pending[1:]
		snapshot := make([]listenerEntry, len(c.listeners))
		copy(snapshot, c.listeners)
		c.mu.Unlock()

		for _, l := range snapshot {
			if c.subscribed(l.id) {
				l.fn(n.event, copySession(n.session))
			}
		}

		c.mu.Lock()
	}

	c.draining = false
	c.mu.Unlock()
}

func (c *Client) subscribed(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (c *Client) removeListener(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
