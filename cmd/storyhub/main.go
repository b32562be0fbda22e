// storyhub はストーリー共有プラットフォームのエントリーポイント。
//
// サブコマンド:
//
//	serve       APIサーバーを起動する（デフォルト）
//	worker      音声生成・孤児掃除ワーカーを起動する
//	migrate     データベースマイグレーションを実行する
//	healthcheck ローカルAPIサーバーの死活確認を行う
package main

import (
	"log/slog"
	"os"

	"github.com/storyhub/storyhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
