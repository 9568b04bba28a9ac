package handler

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/supabase"
)

// msgUnexpected はエラー内容を特定できない場合の通知文言。
const msgUnexpected = "An unexpected error occurred"

// noticeMessage はエラーから利用者に表示するメッセージを取り出す。
// アプリケーションエラー、リモートサービスのエラー、Postgresのエラーの順に探し、
// いずれでもなければラップされた最も内側のエラーの文言を返す。
func noticeMessage(err error) string {
	if err == nil {
		return msgUnexpected
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	var remoteErr *supabase.Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Error()
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}

	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return msgUnexpected
}
