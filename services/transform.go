package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sprintlytojira/config"
	"sprintlytojira/models"
)

// AttachmentResolver は添付ファイル参照を公開URLに解決する外部コラボレーターです
type AttachmentResolver interface {
	Resolve(ctx context.Context, href string) (string, error)
}

// PassthroughResolver はプロキシ未設定時に元のURLをそのまま返します
type PassthroughResolver struct{}

// Resolve は参照URLを変更せずに返します
func (PassthroughResolver) Resolve(_ context.Context, href string) (string, error) {
	return href, nil
}

// AttachmentResolutionError は添付ファイルの解決失敗を表します。
// 1件でも失敗した場合、そのアイテムの添付ファイルセット全体を失敗として扱います
// （不完全なセットはオペレーターにとって有用ではないため）
type AttachmentResolutionError struct {
	Href string
	Err  error
}

func (e *AttachmentResolutionError) Error() string {
	return fmt.Sprintf("添付ファイル解決エラー (%s): %v", e.Href, e.Err)
}

func (e *AttachmentResolutionError) Unwrap() error {
	return e.Err
}

// ItemTransformer はSprint.lyアイテムをJIRAイシュー構造に変換します。
// 変換は設定マップのみに依存する純粋な処理で、同じ入力からは常に同じ結果が得られます
type ItemTransformer struct {
	jiraProjectKey  string
	ticketParentMap models.TicketParentMap
	users           *UserMapper
	rewriter        *MarkdownRewriter
	resolver        AttachmentResolver
	maxConcurrent   int
}

// NewItemTransformer は新しいアイテム変換器を作成します
func NewItemTransformer(jiraProjectKey string, ticketParentMap models.TicketParentMap,
	users *UserMapper, rewriter *MarkdownRewriter, resolver AttachmentResolver, maxConcurrent int) *ItemTransformer {

	if resolver == nil {
		resolver = PassthroughResolver{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &ItemTransformer{
		jiraProjectKey:  jiraProjectKey,
		ticketParentMap: ticketParentMap,
		users:           users,
		rewriter:        rewriter,
		resolver:        resolver,
		maxConcurrent:   maxConcurrent,
	}
}

// TransformItem は1件のSprint.lyアイテムをJIRAイシューに変換します。
// コメントと添付ファイルはこの段階では設定されず、CSV組み立ての前に
// TransformItemComments / TransformItemAttachments で別途変換されます
func (t *ItemTransformer) TransformItem(item *models.Item) (*models.JiraIssue, error) {
	// created_byは常に存在する前提です。欠落はデータ不整合として扱います
	if item.CreatedBy == nil {
		return nil, fmt.Errorf("アイテム %d に created_by がありません", item.Number)
	}

	reporter, err := t.users.Map(item.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("アイテム %d の報告者変換エラー: %w", item.Number, err)
	}

	assignee, err := t.users.Map(item.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("アイテム %d の担当者変換エラー: %w", item.Number, err)
	}

	// 親チケットがある場合はSub-Task、それ以外はアイテム種別から決定します
	parentID := t.ticketParentMap[item.Number]
	issueType := "Sub-Task"
	if parentID == 0 {
		issueType = mapIssueType(item.Type)
	}

	// ステータスが完了系の場合のみResolutionを設定します
	resolution := ""
	if item.Status == "completed" || item.Status == "accepted" {
		resolution = "Done"
	}

	return &models.JiraIssue{
		DateCreated:  item.CreatedAt,
		DateModified: item.LastModified,
		IssueID:      item.Number,
		ParentID:     parentID,
		IssueKey:     fmt.Sprintf("%s-%d", t.jiraProjectKey, item.Number),
		Summary:      t.rewriter.Rewrite(item.Title),
		IssueType:    issueType,
		Assignee:     assignee,
		Reporter:     reporter,
		Labels:       item.Tags,
		Description:  t.rewriter.Rewrite(item.Description),
		Status:       item.Status,
		Resolution:   resolution,
	}, nil
}

// TransformItemComments はコメントを「日時; 作成者; 本文」形式の表示文字列に変換します。
// 本文中のクロスリファレンスも書き換えられます
func (t *ItemTransformer) TransformItemComments(comments []models.Comment) []string {
	if len(comments) == 0 {
		return nil
	}

	result := make([]string, 0, len(comments))
	for _, comment := range comments {
		author := t.users.DisplayName(comment.CreatedBy)
		body := t.rewriter.Rewrite(comment.Body)
		result = append(result, fmt.Sprintf("%s; %s; %s", comment.CreatedAt, author, body))
	}

	return result
}

// TransformItemAttachments は添付ファイル参照をJIRAインポーターが取得できる
// 公開URLに解決します。順序は入力順が維持されます。
// 1件でも失敗した場合はAttachmentResolutionErrorを返します
func (t *ItemTransformer) TransformItemAttachments(ctx context.Context, attachments []models.Attachment) ([]string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	urls := make([]string, len(attachments))
	errs := make([]error, len(attachments))

	// セマフォとしてのチャネル（並列数を制限）
	semaphore := make(chan struct{}, t.maxConcurrent)
	var wg sync.WaitGroup

	for i, attachment := range attachments {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, href string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			url, err := t.resolver.Resolve(ctx, href)
			if err != nil {
				errs[idx] = &AttachmentResolutionError{Href: href, Err: err}
				return
			}
			urls[idx] = url
		}(i, attachment.Href)
	}

	wg.Wait()
	close(semaphore)

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return urls, nil
}

// mapIssueType はSprint.lyアイテム種別をJIRAイシュータイプに変換します
func mapIssueType(itemType string) string {
	if itemType == "" {
		return "Task"
	}
	if mapped, ok := config.IssueTypeMapping[itemType]; ok {
		return mapped
	}
	// マッピングに無い種別は先頭を大文字化してそのまま使います
	return strings.ToUpper(itemType[:1]) + itemType[1:]
}
