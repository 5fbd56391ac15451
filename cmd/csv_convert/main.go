package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"sprintlytojira/api"
	"sprintlytojira/config"
	"sprintlytojira/services"
	"sprintlytojira/utils"
)

func main() {
	// コマンドラインフラグの定義
	input := flag.String("input", "", "入力するSprint.ly JSONダンプのパス (必須)")
	output := flag.String("output", "", "出力するJIRA CSVのパス（指定しない場合は環境変数から取得）")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help || *input == "" {
		printHelp()
		if *input == "" && !*help {
			os.Exit(1)
		}
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	utils.LogInfo("Sprint.ly JSONダンプ → JIRA CSV 変換ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if *output != "" {
		cfg.OutputCSV = *output
	}

	// プロジェクト番号がProjectMapに無いと#参照が黙って残ってしまうため、
	// オフライン変換でも変換に必要な設定は事前に検証します
	if err := cfg.ValidateOffline(); err != nil {
		utils.LogError("設定エラー: %v", err)
		os.Exit(1)
	}

	// ダンプの読み込み
	utils.LogInfo("JSONダンプを読み込んでいます: %s", *input)
	dumps, err := services.ReadDump(*input)
	if err != nil {
		utils.LogError("ダンプ読み込みエラー: %v", err)
		os.Exit(1)
	}
	utils.LogInfo("JSONダンプを読み込みました: %d 件のアイテム", len(dumps))

	// 必要なサービスの初期化（オフライン変換のためAPIクライアントは使いません）
	rewriter := services.NewMarkdownRewriter(cfg.ProjectMap, cfg.JiraBaseURL, cfg.SprintlyProjectNum, cfg.WarnUnmappedProjects)
	users := services.NewUserMapper(cfg.UserMap)

	var resolver services.AttachmentResolver = services.PassthroughResolver{}
	if cfg.FileProxyBaseURL != "" {
		resolver = api.NewFileProxyClient(cfg)
	}

	transformer := services.NewItemTransformer(cfg.JiraProjectKey, cfg.TicketParentMap, users, rewriter, resolver, cfg.MaxConcurrent)
	builder := services.NewCSVBuilder(cfg)
	migrationService := services.NewMigrationService(cfg, nil, transformer, builder)

	// 変換の実行
	rows, report, err := migrationService.TransformDump(context.Background(), dumps)
	if err != nil {
		utils.LogError("変換処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// JIRA CSVとして保存
	if err := migrationService.WriteCSV(rows); err != nil {
		utils.LogError("JIRA CSV書き込みエラー: %v", err)
		os.Exit(1)
	}

	migrationService.ReportResults(report)
	if report.HasFailures() {
		os.Exit(1)
	}

	// 処理時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("CSV変換が完了しました: %d 件のアイテムを処理しました。処理時間: %s", report.Exported, elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
Sprint.ly JSONダンプ → JIRA CSV 変換ツール

使用方法:
  %s --input ダンプファイル [オプション]

オプション:
  --input ファイル     入力するSprint.ly JSONダンプ (必須)
  --output ファイル    出力するJIRA CSV
  --help              このヘルプを表示する

環境変数:
  SPRINTLY_PROJECT_NUM  移行するSprint.lyプロジェクト番号 (必須)
  JIRA_PROJECT_KEY    JIRAプロジェクトキー (必須)
  JIRA_BASE_URL       JIRAベースURL (必須)
  MAPPING_FILE        マッピングYAMLファイルのパス (デフォルト: mapping.yaml)
  OUTPUT_CSV          出力するCSVファイルパス (デフォルト: jira_import_ready.csv)

説明:
  このツールはSprint.ly APIから事前に保存したJSONダンプ
  （コメント・添付ファイルをインライン展開したアイテムの配列）を
  JIRA用のCSVフォーマットに変換します。API接続なしで再実行できます。

  FILE_PROXY_BASE_URL が設定されていない場合、添付ファイルのURLは
  解決されずそのまま出力されます。
`, os.Args[0])
}
