// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はリモートストアから受け取った自由記述テキスト（従業員名・役職・メールアドレス）から
// マークアップを取り除く。bluemondayのStrictPolicyで全タグを除去し、
// 出力時のエスケープはhtml/templateに任せるため、エンティティは元の文字に戻す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// maxSanitizePasses はエンティティで多重にエスケープされたタグを剥がす最大回数。
const maxSanitizePasses = 8

// textSanitizer はTextSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は全てのタグを除去したテキストを返す。
// エンティティを戻すと新たなタグが現れる場合があるため（&lt;b&gt; → <b>）、
// 出力が変化しなくなるまで除去を繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	out := strings.TrimSpace(raw)
	for i := 0; i < maxSanitizePasses && out != ""; i++ {
		next := s.pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// pass はタグの除去とエンティティの復元を1回行う。
func (s *textSanitizer) pass(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// SafeLink はリンクとして表示してよいURLのみを返す。
// http/httpsの絶対URL以外（javascript:, data:, 相対URL等）は空文字を返す。
func SafeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String()
	default:
		return ""
	}
}
