package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"sprintlytojira/api"
	"sprintlytojira/config"
	"sprintlytojira/utils"
)

func main() {
	// ヘルプフラグの定義
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("Sprint.ly認証確認ツール")

	// 認証確認にマッピングファイルは不要なので、環境変数のみを読み込みます
	cfg := config.LoadEnvConfig()
	if cfg.SprintlyEmail == "" || cfg.SprintlyAPIKey == "" {
		utils.LogError("SPRINTLY_EMAIL と SPRINTLY_API_KEY を設定してください。")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Sprint.lyクライアントの初期化
	sprintlyClient := api.NewSprintlyClient(cfg)

	// 認証チェック
	utils.LogInfo("Sprint.ly APIの認証を確認しています...")
	err := sprintlyClient.CheckAuth(ctx)
	if err != nil {
		utils.LogError("Sprint.ly認証エラー: %v", err)
		utils.LogError("認証情報を確認してください。")
		os.Exit(1)
	}

	utils.LogInfo("Sprint.ly認証成功！ 接続先: %s", cfg.SprintlyBaseURL)
	utils.LogInfo("Sprint.ly APIの認証情報は正常です。")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Sprint.ly認証確認ツール

使用方法:
  %s [オプション]

オプション:
  --help              このヘルプを表示する

環境変数:
  SPRINTLY_EMAIL      Sprint.lyアカウントのメールアドレス (必須)
  SPRINTLY_API_KEY    Sprint.ly APIキー (必須)

説明:
  このツールはSprint.ly APIの認証情報が正しく設定されているかを確認します。
  認証が成功すれば、エクスポートツールも正常に動作する可能性が高いです。
`, os.Args[0])
}
