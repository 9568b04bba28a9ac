package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 画面操作全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 画面操作全般のバーストサイズ
	AuthRate        rate.Limit    // サインイン・サインアップ試行のレート（req/sec）。10/60
	AuthBurst       int           // サインイン・サインアップ試行のバーストサイズ
	NewBrowserRate  rate.Limit    // 新しいブラウザ状態の生成レート（req/sec）。30/60
	NewBrowserBurst int           // 新しいブラウザ状態の生成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 画面操作全般 120 req/min/ブラウザ、認証試行 10 req/min/IP、ブラウザ状態の生成 30 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10, 30)
}

// NewRateLimiterConfig は1分あたりの上限値からレート制限設定を生成する。
func NewRateLimiterConfig(generalPerMinute, authPerMinute, newBrowserPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		NewBrowserRate:  rate.Limit(float64(newBrowserPerMinute) / 60.0),
		NewBrowserBurst: newBrowserPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は同一設定のリミッターをキーごとに管理する。
type limiterSet struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	limiters map[string]*keyedLimiter
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{rate: r, burst: burst, limiters: make(map[string]*keyedLimiter)}
}

// get はキーのリミッターを取得または作成する。
func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl, ok := s.limiters[key]; ok {
		kl.lastAccess = now
		return kl.limiter
	}
	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = &keyedLimiter{limiter: limiter, lastAccess: now}
	return limiter
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// evict は最終アクセス時刻がttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はレート制限を管理する。
// ブラウザごとの画面操作全般の制限と、クライアントIPごとの認証試行・ブラウザ状態生成の制限を提供する。
type RateLimiter struct {
	config     RateLimiterConfig
	general    *limiterSet
	auth       *limiterSet
	newBrowser *limiterSet

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:     config,
		general:    newLimiterSet(config.GeneralRate, config.GeneralBurst),
		auth:       newLimiterSet(config.AuthRate, config.AuthBurst),
		newBrowser: newLimiterSet(config.NewBrowserRate, config.NewBrowserBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出しても安全。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware は画面操作全般のレート制限ミドルウェアを返す。
// ブラウザ状態のIDをキーとする（BrowserMiddlewareの後に配置）。
// 状態がこのリクエストで生成された場合はCookieを持たないクライアントとしてIPをキーとする。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if state, err := BrowserFromContext(r.Context()); err == nil && !isNewBrowser(r.Context()) {
				key = state.ID
			}

			if !rl.general.get(key, time.Now()).Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware は認証試行のレート制限ミドルウェアを返す。
// 状態変更メソッドのみを対象とし、クライアントIPをキーとする。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !rl.auth.get(ip, time.Now()).Allow() {
				writeRateLimitResponse(w, rl.config.AuthRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "auth"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdmitNewBrowser はクライアントIPごとに新しいブラウザ状態の生成を制限する。
// 上限を超えた場合は429を書き込みfalseを返す。
func (rl *RateLimiter) AdmitNewBrowser(w http.ResponseWriter, r *http.Request) bool {
	ip := clientIP(r)
	if rl.newBrowser.get(ip, time.Now()).Allow() {
		return true
	}

	writeRateLimitResponse(w, rl.config.NewBrowserRate)
	slog.Warn("rate limit exceeded",
		slog.String("client_ip", ip),
		slog.String("limit_type", "new_browser"),
	)
	return false
}

// GeneralLimiterCount は現在管理されている画面操作全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// NewBrowserLimiterCount は現在管理されているブラウザ状態生成リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) NewBrowserLimiterCount() int {
	return rl.newBrowser.len()
}

// AuthLimiterCount は現在管理されている認証試行リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evict(now, ttl)
	rl.auth.evict(now, ttl)
	rl.newBrowser.evict(now, ttl)
}

// clientIP はリクエスト元のIPアドレスを返す。
// TRUST_PROXY_HEADERSが有効な場合はchiのRealIPミドルウェアがRemoteAddrを書き換えている。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
}

var _ BrowserAdmission = (*RateLimiter)(nil)
