package services

import (
	"fmt"
	"strconv"

	"sprintlytojira/config"
	"sprintlytojira/models"
)

// fixedColumns はJIRA CSVの固定列をこの順序で定義します
var fixedColumns = []string{
	"Issue Key",
	"Issue Id",
	"Parent Id",
	"Issue Type",
	"Summary",
	"Assignee",
	"Reporter",
	"Description",
	"Status",
	"Date Created",
	"Date Modified",
	"Resolution",
}

// ColumnOverflowError はタグ・コメント・添付ファイルの件数が
// 設定された列数の上限を超えたことを表します。
// 超過分を黙って切り捨てると移行先でデータが失われるため、必ずエラーにします
type ColumnOverflowError struct {
	ItemNumber int
	Field      string
	Count      int
	Max        int
}

func (e *ColumnOverflowError) Error() string {
	return fmt.Sprintf("アイテム %d の %s が列数上限を超えています: %d 件 (上限 %d)。設定の上限値を増やして再実行してください",
		e.ItemNumber, e.Field, e.Count, e.Max)
}

// CSVBuilder はJIRAイシューを固定幅のCSV行に組み立てます
type CSVBuilder struct {
	maxLabels      int
	maxComments    int
	maxAttachments int
}

// NewCSVBuilder は新しいCSVビルダーを作成します
func NewCSVBuilder(cfg *config.Config) *CSVBuilder {
	return &CSVBuilder{
		maxLabels:      cfg.MaxLabels,
		maxComments:    cfg.MaxComments,
		maxAttachments: cfg.MaxAttachments,
	}
}

// RowLength はヘッダー行およびすべてのデータ行の列数を返します
func (b *CSVBuilder) RowLength() int {
	return len(fixedColumns) + b.maxLabels + b.maxComments + b.maxAttachments
}

// HeaderRow はCSVのヘッダー行を返します。
// 固定列の後に Label 1..N、Comment 1..N、Attachment 1..N が続きます
func (b *CSVBuilder) HeaderRow() []string {
	row := make([]string, 0, b.RowLength())
	row = append(row, fixedColumns...)

	for i := 1; i <= b.maxLabels; i++ {
		row = append(row, fmt.Sprintf("Label %d", i))
	}
	for i := 1; i <= b.maxComments; i++ {
		row = append(row, fmt.Sprintf("Comment %d", i))
	}
	for i := 1; i <= b.maxAttachments; i++ {
		row = append(row, fmt.Sprintf("Attachment %d", i))
	}

	return row
}

// RowFor は1件のイシューをヘッダーと同じ列数のデータ行に変換します
func (b *CSVBuilder) RowFor(issue *models.JiraIssue) ([]string, error) {
	parentID := ""
	if issue.ParentID != 0 {
		parentID = strconv.Itoa(issue.ParentID)
	}

	row := make([]string, 0, b.RowLength())
	row = append(row,
		issue.IssueKey,
		strconv.Itoa(issue.IssueID),
		parentID,
		issue.IssueType,
		issue.Summary,
		issue.Assignee,
		issue.Reporter,
		issue.Description,
		issue.Status,
		issue.DateCreated,
		issue.DateModified,
		issue.Resolution,
	)

	var err error
	if row, err = b.appendPadded(row, issue, "labels", issue.Labels, b.maxLabels); err != nil {
		return nil, err
	}
	if row, err = b.appendPadded(row, issue, "comments", issue.Comments, b.maxComments); err != nil {
		return nil, err
	}
	if row, err = b.appendPadded(row, issue, "attachments", issue.Attachments, b.maxAttachments); err != nil {
		return nil, err
	}

	return row, nil
}

// appendPadded は可変長フィールドを上限まで空セルで埋めて追加します。
// 件数が上限を超えた場合はColumnOverflowErrorを返します
func (b *CSVBuilder) appendPadded(row []string, issue *models.JiraIssue, field string, values []string, max int) ([]string, error) {
	if len(values) > max {
		return nil, &ColumnOverflowError{
			ItemNumber: issue.IssueID,
			Field:      field,
			Count:      len(values),
			Max:        max,
		}
	}

	row = append(row, values...)
	for i := len(values); i < max; i++ {
		row = append(row, "")
	}

	return row, nil
}

// TransformAllItemsToCSVArray はヘッダー行と全イシューのデータ行を入力順に組み立てます
func (b *CSVBuilder) TransformAllItemsToCSVArray(issues []*models.JiraIssue) ([][]string, error) {
	rows := make([][]string, 0, len(issues)+1)
	rows = append(rows, b.HeaderRow())

	for _, issue := range issues {
		row, err := b.RowFor(issue)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}
