package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"sprintlytojira/config"
	"sprintlytojira/models"
)

// ErrItemNotFound は指定番号のアイテムが存在しないことを表します
// （削除されたチケットなど、番号の欠番は移行時にスキップされます）
var ErrItemNotFound = errors.New("アイテムが見つかりません")

// SprintlyClient はSprint.ly APIとのやり取りを処理します
type SprintlyClient struct {
	config *config.Config
	client *http.Client
}

// NewSprintlyClient は新しいSprint.lyクライアントを作成します
func NewSprintlyClient(cfg *config.Config) *SprintlyClient {
	return &SprintlyClient{
		config: cfg,
		client: &http.Client{},
	}
}

// CheckAuth はSprint.ly認証をチェックします
func (s *SprintlyClient) CheckAuth(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/products.json", s.config.SprintlyBaseURL)

	var products []models.Product
	if err := s.getJSON(ctx, url, &products); err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}

	return nil
}

// FetchItem は指定番号のアイテムを取得します。
// アイテムが存在しない場合はErrItemNotFoundを返します
func (s *SprintlyClient) FetchItem(ctx context.Context, number int) (*models.Item, error) {
	url := fmt.Sprintf("%s/api/products/%d/items/%d.json",
		s.config.SprintlyBaseURL, s.config.SprintlyProjectNum, number)

	var item models.Item
	if err := s.getJSON(ctx, url, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

// FetchComments は指定番号のアイテムのコメント一覧を取得します
func (s *SprintlyClient) FetchComments(ctx context.Context, number int) ([]models.Comment, error) {
	url := fmt.Sprintf("%s/api/products/%d/items/%d/comments.json",
		s.config.SprintlyBaseURL, s.config.SprintlyProjectNum, number)

	var comments []models.Comment
	if err := s.getJSON(ctx, url, &comments); err != nil {
		return nil, err
	}

	return comments, nil
}

// FetchAttachments は指定番号のアイテムの添付ファイル一覧を取得します
func (s *SprintlyClient) FetchAttachments(ctx context.Context, number int) ([]models.Attachment, error) {
	url := fmt.Sprintf("%s/api/products/%d/items/%d/attachments.json",
		s.config.SprintlyBaseURL, s.config.SprintlyProjectNum, number)

	var attachments []models.Attachment
	if err := s.getJSON(ctx, url, &attachments); err != nil {
		return nil, err
	}

	return attachments, nil
}

// getJSON は認証付きGETリクエストを送信しJSONレスポンスをデコードします
func (s *SprintlyClient) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(s.config.SprintlyEmail, s.config.SprintlyAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrItemNotFound
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Sprint.ly APIエラー (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return nil
}
