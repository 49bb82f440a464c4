package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/sleeptrack/internal/stats"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は日次サマリー再計算ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandBackfill は指定期間の日次サマリーを一括で再計算することを示す。
	CommandBackfill Command = "backfill"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// maxBackfillDays はbackfillで一度に再計算できる日数の上限。
const maxBackfillDays = 366

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandBackfill, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// ParseBackfillDays はbackfillの引数（開始日と省略可能な終了日）から対象日を昇順で返す。
// 終了日を省略した場合は開始日のみを対象とする。
func ParseBackfillDays(args []string) ([]time.Time, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, fmt.Errorf("usage: backfill START_DATE [END_DATE] (YYYY-MM-DD)")
	}

	start, ok := stats.ParseDate(args[0])
	if !ok {
		return nil, fmt.Errorf("invalid start date: %q", args[0])
	}
	end := start
	if len(args) == 2 {
		if end, ok = stats.ParseDate(args[1]); !ok {
			return nil, fmt.Errorf("invalid end date: %q", args[1])
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			end.Format(stats.DateLayout), start.Format(stats.DateLayout))
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		if len(days) > maxBackfillDays {
			return nil, fmt.Errorf("backfill range must be at most %d days", maxBackfillDays)
		}
	}
	return days, nil
}

// MigrateAction はmigrateサブコマンドの動作。
type MigrateAction struct {
	// Down は巻き戻すマイグレーション数。0の場合はすべての未適用マイグレーションを適用する。
	Down int
}

// ParseMigrateAction はmigrateの引数を解析する。
// 引数なしで適用、"down [N]"でN件（省略時1件）の巻き戻しを表す。
func ParseMigrateAction(args []string) (MigrateAction, error) {
	if len(args) == 0 {
		return MigrateAction{}, nil
	}
	if args[0] != "down" || len(args) > 2 {
		return MigrateAction{}, fmt.Errorf("usage: migrate [down [N]]")
	}
	if len(args) == 1 {
		return MigrateAction{Down: 1}, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return MigrateAction{}, fmt.Errorf("invalid rollback steps: %q", args[1])
	}
	return MigrateAction{Down: n}, nil
}
