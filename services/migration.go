package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"sprintlytojira/api"
	"sprintlytojira/config"
	"sprintlytojira/models"
	"sprintlytojira/utils"
)

// ItemSource はアイテムと関連データを取得する外部コラボレーターです
type ItemSource interface {
	FetchItem(ctx context.Context, number int) (*models.Item, error)
	FetchComments(ctx context.Context, number int) ([]models.Comment, error)
	FetchAttachments(ctx context.Context, number int) ([]models.Attachment, error)
}

// ItemFailure は1件のアイテムの変換失敗を表します
type ItemFailure struct {
	Number int
	Err    error
}

// RunReport は移行実行の結果サマリーです。
// 失敗したアイテム番号が分かるため、オペレーターは設定を修正して
// 失敗した範囲だけを再実行できます
type RunReport struct {
	Exported int
	Skipped  []int
	Failures []ItemFailure
}

// HasFailures は1件以上の失敗があったかどうかを返します
func (r *RunReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// MigrationService はSprint.lyからJIRA CSVへの移行を処理します
type MigrationService struct {
	config      *config.Config
	source      ItemSource
	transformer *ItemTransformer
	builder     *CSVBuilder
}

// NewMigrationService は新しい移行サービスを作成します
func NewMigrationService(cfg *config.Config, source ItemSource, transformer *ItemTransformer, builder *CSVBuilder) *MigrationService {
	return &MigrationService{
		config:      cfg,
		source:      source,
		transformer: transformer,
		builder:     builder,
	}
}

// ExportRange は設定されたチケット番号範囲のアイテムを取得・変換し、
// ヘッダー行を含むCSV行列と実行レポートを返します。
// アイテム単位の失敗（ユーザーマッピング漏れ、列数超過、添付ファイル解決失敗）は
// レポートに集約され、バッチ全体は中断されません
func (m *MigrationService) ExportRange(ctx context.Context) ([][]string, *RunReport, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "エクスポート処理")

	report := &RunReport{}
	rows := [][]string{m.builder.HeaderRow()}

	utils.LogInfo("チケット番号 %d〜%d のエクスポートを開始します", m.config.FirstTicketNum, m.config.LastTicketNum)

	for number := m.config.FirstTicketNum; number <= m.config.LastTicketNum; number++ {
		// キャンセルされた場合はアイテム境界で停止します。
		// 生成済みの行は有効なので、次の番号から再開できます
		if err := ctx.Err(); err != nil {
			utils.LogWarn("アイテム %d の処理前に中断されました", number)
			return rows, report, err
		}

		row, err := m.exportItem(ctx, number)
		if err != nil {
			if errors.Is(err, api.ErrItemNotFound) {
				utils.LogWarn("アイテム %d が見つからないためスキップします（削除済みの可能性）", number)
				report.Skipped = append(report.Skipped, number)
				continue
			}

			utils.LogError("アイテム %d の変換に失敗: %v", number, err)
			report.Failures = append(report.Failures, ItemFailure{Number: number, Err: err})
			continue
		}

		rows = append(rows, row)
		report.Exported++
		utils.LogDebug("アイテム %d の変換が完了しました", number)
	}

	return rows, report, nil
}

// exportItem は1件のアイテムを取得し、変換済みのCSV行を返します
func (m *MigrationService) exportItem(ctx context.Context, number int) ([]string, error) {
	item, err := m.source.FetchItem(ctx, number)
	if err != nil {
		return nil, err
	}

	issue, err := m.transformer.TransformItem(item)
	if err != nil {
		return nil, err
	}

	comments, err := m.source.FetchComments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("コメント取得エラー: %w", err)
	}
	issue.Comments = m.transformer.TransformItemComments(comments)

	attachments, err := m.source.FetchAttachments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("添付ファイル取得エラー: %w", err)
	}
	issue.Attachments, err = m.transformer.TransformItemAttachments(ctx, attachments)
	if err != nil {
		return nil, err
	}

	return m.builder.RowFor(issue)
}

// TransformDump はオフラインのJSONダンプ（コメント・添付ファイルをインライン展開した
// アイテムの配列）をCSV行列に変換します。API接続なしでの再実行に使います
func (m *MigrationService) TransformDump(ctx context.Context, dumps []models.ItemDump) ([][]string, *RunReport, error) {
	report := &RunReport{}
	rows := [][]string{m.builder.HeaderRow()}

	for i := range dumps {
		dump := &dumps[i]

		if err := ctx.Err(); err != nil {
			return rows, report, err
		}

		issue, err := m.transformer.TransformItem(&dump.Item)
		if err == nil {
			issue.Comments = m.transformer.TransformItemComments(dump.Comments)
			issue.Attachments, err = m.transformer.TransformItemAttachments(ctx, dump.Attachments)
		}

		var row []string
		if err == nil {
			row, err = m.builder.RowFor(issue)
		}

		if err != nil {
			utils.LogError("アイテム %d の変換に失敗: %v", dump.Number, err)
			report.Failures = append(report.Failures, ItemFailure{Number: dump.Number, Err: err})
			continue
		}

		rows = append(rows, row)
		report.Exported++
	}

	return rows, report, nil
}

// ReadDump はJSONダンプファイルを読み込みます
func ReadDump(path string) ([]models.ItemDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ダンプファイル読み込みエラー: %w", err)
	}

	var dumps []models.ItemDump
	if err := json.Unmarshal(data, &dumps); err != nil {
		return nil, fmt.Errorf("ダンプファイル解析エラー: %w", err)
	}

	return dumps, nil
}

// WriteCSV はCSV行列を出力ファイルに書き込みます
func (m *MigrationService) WriteCSV(rows [][]string) error {
	utils.LogInfo("JIRA CSVファイル '%s' を作成します", m.config.OutputCSV)

	file, err := os.Create(m.config.OutputCSV)
	if err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("CSV書き込みエラー: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV書き込み完了エラー: %w", err)
	}

	utils.LogInfo("CSV書き込み完了: ヘッダー + %d 行", len(rows)-1)
	return nil
}

// ReportResults は実行レポートをログに出力します
func (m *MigrationService) ReportResults(report *RunReport) {
	utils.LogInfo("エクスポート完了: 成功=%d, スキップ=%d, 失敗=%d",
		report.Exported, len(report.Skipped), len(report.Failures))

	for _, failure := range report.Failures {
		utils.LogError("失敗したアイテム %d: %v", failure.Number, failure.Err)
	}

	if report.HasFailures() {
		utils.LogWarn("マッピングや列数上限を修正し、失敗した番号範囲のみ再実行してください")
	}
}

// Run はエクスポート処理全体を実行します。
// アイテム単位の失敗があった場合もCSVは書き込まれ、エラーとして報告されます
func (m *MigrationService) Run(ctx context.Context) error {
	rows, report, err := m.ExportRange(ctx)
	if err != nil {
		// 中断された場合も生成済みの行は有効なので書き込みます。
		// オペレーターは次の未処理番号から再開できます
		if writeErr := m.WriteCSV(rows); writeErr != nil {
			return fmt.Errorf("中断後のCSV書き込みエラー: %w", writeErr)
		}
		m.ReportResults(report)
		return err
	}

	if err := m.WriteCSV(rows); err != nil {
		return err
	}

	m.ReportResults(report)

	if report.HasFailures() {
		return fmt.Errorf("%d 件のアイテムの変換に失敗しました", len(report.Failures))
	}

	return nil
}
