package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sprintlytojira/config"
	"sprintlytojira/utils"
)

// FileProxyClient はSprint.lyの添付ファイルを一時的に公開URLへ解決するプロキシとやり取りします。
// プロキシはSprint.ly認証を代行し、JIRAインポーターが取得できるURLへリダイレクトします
type FileProxyClient struct {
	config *config.Config
	client *http.Client
}

// NewFileProxyClient は新しいファイルプロキシクライアントを作成します
func NewFileProxyClient(cfg *config.Config) *FileProxyClient {
	return &FileProxyClient{
		config: cfg,
		client: &http.Client{
			// リダイレクト先の公開URLを知りたいだけなので、追従はしません
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Timeout: 60 * time.Second,
		},
	}
}

// Resolve は添付ファイル参照をプロキシ経由で公開URLに解決します。
// 一時的な失敗は指数バックオフでリトライします
func (f *FileProxyClient) Resolve(ctx context.Context, href string) (string, error) {
	proxyURL, err := f.proxyURLFor(href)
	if err != nil {
		return "", err
	}

	var publicURL string
	operation := func() error {
		resolved, err := f.resolveOnce(ctx, proxyURL)
		if err != nil {
			return err
		}
		publicURL = resolved
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	return publicURL, nil
}

// proxyURLFor はSprint.lyファイルURLのパスをプロキシのベースURLに載せ替えます
func (f *FileProxyClient) proxyURLFor(href string) (string, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("添付ファイルURL解析エラー: %w", err)
	}

	return f.config.FileProxyBaseURL + parsed.Path, nil
}

// resolveOnce はプロキシに1回リクエストしリダイレクト先のURLを取得します
func (f *FileProxyClient) resolveOnce(ctx context.Context, proxyURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("リクエスト作成エラー: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		utils.LogDebug("プロキシリクエスト失敗、リトライします: %v", err)
		return "", fmt.Errorf("プロキシリクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", backoff.Permanent(fmt.Errorf("プロキシのリダイレクト先が空です"))
		}
		return location, nil
	case resp.StatusCode >= 500:
		// サーバーエラーは一時的なものとしてリトライ対象にします
		return "", fmt.Errorf("プロキシサーバーエラー (status %d)", resp.StatusCode)
	default:
		return "", backoff.Permanent(fmt.Errorf("プロキシ解決失敗 (status %d)", resp.StatusCode))
	}
}
