package app

import (
	"errors"
	"fmt"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションを掃除するワーカーを起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを操作することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandProviders は連携先ごとのOAuthクライアント設定の有無を表示する。
	CommandProviders Command = "providers"
)

// MigrateAction はmigrateサブコマンドの動作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// ErrUnknownCommand は未対応のサブコマンドが指定されたことを示す。
var ErrUnknownCommand = errors.New("unknown command")

// Invocation はコマンドライン引数の解析結果。
type Invocation struct {
	Command Command
	// Migrate はCommandMigrateのときのみ設定される。
	Migrate MigrateAction
}

// ParseCommand はコマンドライン引数（os.Args[1:]）を解析する。
// 引数が空の場合はserveとして扱う。migrateは省略時upとする。
func ParseCommand(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandHealthcheck, CommandProviders:
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		action := MigrateUp
		if len(args) > 1 {
			action = MigrateAction(args[1])
		}
		switch action {
		case MigrateUp, MigrateDown, MigrateVersion:
			return Invocation{Command: cmd, Migrate: action}, nil
		}
		return Invocation{}, fmt.Errorf("%w: migrate %q (up|down|version)", ErrUnknownCommand, args[1])
	default:
		return Invocation{}, fmt.Errorf("%w: %q (serve|worker|migrate|healthcheck|providers)", ErrUnknownCommand, args[0])
	}
}
