package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は給与管理画面のWebサーバーを起動する。
	CommandServe Command = "serve"
	// CommandMigrate はemployees/payrollsテーブルのマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// commandSummaries はUsageに表示する説明。表示順を兼ねる。
var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "run the PayrollPro web server (default)"},
	{CommandMigrate, "apply database migrations to DATABASE_URL"},
	{CommandHealthcheck, "probe /health on SERVER_PORT and exit non-zero on failure"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "help", "-h", "--help":
		return CommandHelp
	default:
		return CommandServe
	}
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("Usage: payrollpro [command]\n\nCommands:\n")
	for _, c := range commandSummaries {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.summary)
	}
	return b.String()
}
