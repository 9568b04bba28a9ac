package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error はBaaSが返したエラーを表す。
// Error()はプロバイダーのメッセージをそのまま返し、利用者への通知に使用する。
type Error struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Message
}

// IsStatus はerrがBaaSのエラーで、ステータスコードがstatusと一致するかを判定する。
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// parseError はエラーレスポンスのボディを解釈する。
// GoTrue（error_description, msg）、PostgREST（message, code）、Storage（error, message）の
// いずれの形式にも対応する。
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		e.Message = firstString(raw, "error_description", "msg", "message", "error")
		e.Code = firstString(raw, "error_code", "code", "error")
	}

	if e.Message == "" {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(status)
		}
		e.Message = text
	}
	return e
}

// firstString はキーの優先順に最初に見つかった空でない値を文字列として返す。
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return ""
}
