package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"sprintlytojira/api"
	"sprintlytojira/config"
	"sprintlytojira/services"
	"sprintlytojira/utils"
)

func main() {
	// コマンドラインフラグの定義
	first := flag.Int("first", 0, "エクスポートする最初のチケット番号（0の場合は環境変数から取得）")
	last := flag.Int("last", 0, "エクスポートする最後のチケット番号（0の場合は環境変数から取得）")
	output := flag.String("output", "", "出力するJIRA CSVのパス（指定しない場合は環境変数から取得）")
	mapping := flag.String("mapping", "", "マッピングYAMLファイルのパス（指定しない場合は環境変数から取得）")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	utils.LogInfo("Sprint.ly → JIRA CSV エクスポートツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// コマンドラインで指定された場合、設定を上書き
	if *first > 0 {
		cfg.FirstTicketNum = *first
	}
	if *last > 0 {
		cfg.LastTicketNum = *last
	}
	if *output != "" {
		cfg.OutputCSV = *output
	}
	if *mapping != "" {
		if err := cfg.LoadMappingFile(*mapping); err != nil {
			utils.LogError("マッピングファイルの読み込みに失敗しました: %v", err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		utils.LogError("設定エラー: %v", err)
		os.Exit(1)
	}

	utils.LogInfo("設定読み込み完了 (プロジェクト %d → %s, チケット %d〜%d)",
		cfg.SprintlyProjectNum, cfg.JiraProjectKey, cfg.FirstTicketNum, cfg.LastTicketNum)

	// Ctrl-Cでアイテム境界で停止し、生成済みの行は書き込まれます
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 必要なサービスの初期化
	sprintlyClient := api.NewSprintlyClient(cfg)
	rewriter := services.NewMarkdownRewriter(cfg.ProjectMap, cfg.JiraBaseURL, cfg.SprintlyProjectNum, cfg.WarnUnmappedProjects)
	users := services.NewUserMapper(cfg.UserMap)

	var resolver services.AttachmentResolver = services.PassthroughResolver{}
	if cfg.FileProxyBaseURL != "" {
		resolver = api.NewFileProxyClient(cfg)
	} else {
		utils.LogWarn("FILE_PROXY_BASE_URL が未設定のため、添付ファイルURLはそのまま出力されます")
	}

	transformer := services.NewItemTransformer(cfg.JiraProjectKey, cfg.TicketParentMap, users, rewriter, resolver, cfg.MaxConcurrent)
	builder := services.NewCSVBuilder(cfg)
	migrationService := services.NewMigrationService(cfg, sprintlyClient, transformer, builder)

	// エクスポートの実行
	if err := migrationService.Run(ctx); err != nil {
		utils.LogError("エクスポート処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 合計実行時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("エクスポート処理が完了しました。合計実行時間: %s", elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Sprint.ly → JIRA CSV エクスポートツール

使用方法:
  %s [オプション]

オプション:
  --first=N           エクスポートする最初のチケット番号
  --last=N            エクスポートする最後のチケット番号
  --output ファイル    出力するJIRA CSVのパス
  --mapping ファイル   マッピングYAMLファイルのパス
  --help              このヘルプを表示する

環境変数:
  SPRINTLY_EMAIL      Sprint.lyアカウントのメールアドレス (必須)
  SPRINTLY_API_KEY    Sprint.ly APIキー (必須)
  SPRINTLY_PROJECT_NUM  移行するSprint.lyプロジェクト番号 (必須)
  JIRA_PROJECT_KEY    JIRAプロジェクトキー (必須)
  JIRA_BASE_URL       JIRAベースURL (必須)
  FILE_PROXY_BASE_URL 添付ファイルプロキシのベースURL
  FIRST_TICKET_NUM    最初のチケット番号 (デフォルト: 1)
  LAST_TICKET_NUM     最後のチケット番号 (デフォルト: 1)
  MAX_LABELS          ラベル列数の上限 (デフォルト: 20)
  MAX_COMMENTS        コメント列数の上限 (デフォルト: 500)
  MAX_ATTACHMENTS     添付ファイル列数の上限 (デフォルト: 40)
  MAPPING_FILE        マッピングYAMLファイルのパス (デフォルト: mapping.yaml)
  OUTPUT_CSV          出力するCSVファイルパス (デフォルト: jira_import_ready.csv)
  WARN_UNMAPPED_PROJECTS  マッピングに無いプロジェクトへのリンクを警告する (デフォルト: 1)
  MAX_CONCURRENT      並列処理の最大数 (デフォルト: 10)

説明:
  このツールはSprint.ly APIから指定範囲のアイテムを取得し、
  JIRAのCSVインポーターで読み込めるCSVファイルに変換します。

  アイテム単位の失敗（ユーザーマッピング漏れ、列数超過、添付ファイル解決失敗）は
  番号付きで報告されるため、設定を修正して失敗した範囲のみを再実行できます。

例:
  # 設定された範囲全体をエクスポート
  %s

  # チケット100〜200のみをエクスポート
  %s --first=100 --last=200
`, os.Args[0], os.Args[0], os.Args[0])
}
