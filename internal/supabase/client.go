// Package supabase はSupabase互換のBaaS（GoTrue認証、PostgRESTデータ、Storage）の
// HTTPクライアントを提供する。
//
// アプリケーションはこのパッケージを外部サービスの契約の消費者としてのみ使用する。
// 永続化・認証・ファイル保存の実装は持たない。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Observer は外部呼び出しの結果を受け取るインターフェース。
// メトリクス収集に使用する。
type Observer interface {
	ObserveRemoteCall(service, operation string, duration time.Duration, err error)
}

// Config はクライアントの設定。
type Config struct {
	URL        string // 例: https://xyzcompany.supabase.co
	AnonKey    string
	HTTPClient *http.Client
	Observer   Observer
}

// Client はBaaSの各サービスへの入り口。
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	observer   Observer

	Auth    *AuthAPI
	Rest    *RestClient
	Storage *StorageClient
}

// New はClientを生成する。
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase URL: %q", config.URL)
	}
	if config.AnonKey == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		anonKey:    config.AnonKey,
		httpClient: httpClient,
		observer:   config.Observer,
	}
	c.Auth = &AuthAPI{c: c}
	c.Rest = &RestClient{c: c}
	c.Storage = &StorageClient{c: c}
	return c, nil
}

type accessTokenKey struct{}

// WithAccessToken はRest・Storage呼び出しで使用するユーザーのアクセストークンをコンテキストに格納する。
// 行レベルセキュリティはこのトークンのユーザーで評価される。
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// accessTokenFromContext はコンテキストのアクセストークンを返す。なければanonキーを返す。
func (c *Client) accessTokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(accessTokenKey{}).(string); ok && token != "" {
		return token
	}
	return c.anonKey
}

// request は1回の外部呼び出しを表す。
type request struct {
	service   string // auth, rest, storage
	operation string
	method    string
	path      string
	query     url.Values
	body      io.Reader
	header    http.Header
	bearer    string // 空の場合はコンテキストのトークンを使用する
}

// jsonBody は値をJSONにエンコードしたリクエストボディを返す。
func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// send はリクエストを送信し、2xxの場合はレスポンスボディをoutにデコードする。
// 2xx以外の場合はレスポンスボディから*Errorを構築して返す。
func (c *Client) send(ctx context.Context, req request, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRemoteCall(req.service, req.operation, time.Since(start), err)
		}
	}()

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", req.service, err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" && req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	bearer := req.bearer
	if bearer == "" {
		bearer = c.accessTokenFromContext(ctx)
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", req.service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", req.service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", req.service, err)
	}
	return nil
}
