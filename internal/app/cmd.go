package app

import (
	"flag"
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はスナップショットジョブを定期実行するワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandSnapshot はスナップショットジョブを1回だけ実行することを示す。
	CommandSnapshot Command = "snapshot"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// マイグレーションの操作
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateVersion = "version"
)

// Invocation はコマンドライン引数の解析結果。
type Invocation struct {
	Command Command
	// Force はsnapshotコマンドで当日分を再生成するかどうか。
	Force bool
	// MigrateAction はmigrateコマンドの操作（up, down, version）。
	MigrateAction string
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "snapshot":
		return CommandSnapshot
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// ParseArgs はサブコマンドとそのオプションを解析する。
//
//	snapshot [--force]
//	migrate [up|down|version]
func ParseArgs(args []string) (Invocation, error) {
	inv := Invocation{Command: ParseCommand(args)}

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	switch inv.Command {
	case CommandSnapshot:
		fs := flag.NewFlagSet(string(CommandSnapshot), flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.BoolVar(&inv.Force, "force", false, "delete today's snapshot and regenerate it")
		if err := fs.Parse(rest); err != nil {
			return inv, fmt.Errorf("invalid snapshot arguments: %w", err)
		}
	case CommandMigrate:
		inv.MigrateAction = MigrateUp
		if len(rest) > 0 {
			inv.MigrateAction = rest[0]
		}
		switch inv.MigrateAction {
		case MigrateUp, MigrateDown, MigrateVersion:
		default:
			return inv, fmt.Errorf("unknown migrate action: %q (want up, down or version)", inv.MigrateAction)
		}
	}

	return inv, nil
}
