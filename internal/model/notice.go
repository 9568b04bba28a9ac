package model

// NoticeKind は通知の種類を表す。
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice は次の画面表示で一度だけ表示する通知。
type Notice struct {
	Kind    NoticeKind
	Message string
}

// SuccessNotice は成功通知を生成する。
func SuccessNotice(message string) Notice {
	return Notice{Kind: NoticeSuccess, Message: message}
}

// ErrorNotice はエラー通知を生成する。
func ErrorNotice(message string) Notice {
	return Notice{Kind: NoticeError, Message: message}
}
