// Command sleeptrack は睡眠記録APIサーバーと日次サマリー再計算ワーカーを起動する。
//
// 使い方:
//
//	sleeptrack [serve|worker|migrate|backfill START [END]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/sleeptrack/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sleeptrack: %v\n", err)
		os.Exit(1)
	}
}
