package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sprintlytojira/models"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Sprint.ly API設定
	SprintlyBaseURL    string
	SprintlyEmail      string
	SprintlyAPIKey     string
	SprintlyProjectNum int

	// JIRA側の出力設定
	JiraProjectKey string
	JiraBaseURL    string

	// 添付ファイルプロキシ設定（空の場合はURLをそのまま出力）
	FileProxyBaseURL string

	// インポート対象のチケット番号範囲（両端を含む）
	FirstTicketNum int
	LastTicketNum  int

	// JIRA CSVフォーマットではタグ・コメント・添付ファイルごとに1列を割り当てます。
	// 実際の件数が上限を超えた場合は黙って切り捨てずエラーにします
	MaxLabels      int
	MaxComments    int
	MaxAttachments int

	// ファイルパス
	MappingFile string
	OutputCSV   string

	// ProjectMapに無いプロジェクト番号へのリンクを警告するかどうか
	WarnUnmappedProjects bool

	// 並列処理設定
	MaxConcurrent int

	// マッピングファイルから読み込まれる変換マップ
	UserMap         models.UserMap
	ProjectMap      models.ProjectMap
	TicketParentMap models.TicketParentMap
}

// IssueTypeMapping はSprint.lyアイテム種別からJIRAイシュータイプへのマッピングです
var IssueTypeMapping = map[string]string{
	"story":  "Story",
	"task":   "Task",
	"defect": "Bug",
	"test":   "Test",
}

// mappingFile はマッピングYAMLファイルの構造です
type mappingFile struct {
	Users         map[string]*string `yaml:"users"`
	Projects      map[int]string     `yaml:"projects"`
	TicketParents map[int]int        `yaml:"ticket_parents"`
}

// LoadConfig は環境変数とマッピングファイルから設定を読み込みます
func LoadConfig() (*Config, error) {
	config := LoadEnvConfig()

	if err := config.LoadMappingFile(config.MappingFile); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadEnvConfig は環境変数のみから設定を読み込みます。
// マッピングファイルを使わないツール（認証確認など）向けです
func LoadEnvConfig() *Config {
	// .envファイルを読み込む
	_ = godotenv.Load()

	return &Config{
		SprintlyBaseURL:      strings.TrimRight(getEnvWithDefault("SPRINTLY_BASE_URL", "https://sprint.ly"), "/"),
		SprintlyEmail:        os.Getenv("SPRINTLY_EMAIL"),
		SprintlyAPIKey:       os.Getenv("SPRINTLY_API_KEY"),
		SprintlyProjectNum:   getEnvAsIntWithDefault("SPRINTLY_PROJECT_NUM", 0),
		JiraProjectKey:       os.Getenv("JIRA_PROJECT_KEY"),
		JiraBaseURL:          strings.TrimRight(os.Getenv("JIRA_BASE_URL"), "/"),
		FileProxyBaseURL:     strings.TrimRight(os.Getenv("FILE_PROXY_BASE_URL"), "/"),
		FirstTicketNum:       getEnvAsIntWithDefault("FIRST_TICKET_NUM", 1),
		LastTicketNum:        getEnvAsIntWithDefault("LAST_TICKET_NUM", 1),
		MaxLabels:            getEnvAsIntWithDefault("MAX_LABELS", 20),
		MaxComments:          getEnvAsIntWithDefault("MAX_COMMENTS", 500),
		MaxAttachments:       getEnvAsIntWithDefault("MAX_ATTACHMENTS", 40),
		MappingFile:          getEnvWithDefault("MAPPING_FILE", "mapping.yaml"),
		OutputCSV:            getEnvWithDefault("OUTPUT_CSV", "jira_import_ready.csv"),
		WarnUnmappedProjects: getEnvAsBoolWithDefault("WARN_UNMAPPED_PROJECTS", true),
		MaxConcurrent:        getEnvAsIntWithDefault("MAX_CONCURRENT", 10),
	}
}

// LoadMappingFile はYAMLマッピングファイルから変換マップを読み込みます
func (c *Config) LoadMappingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("マッピングファイル読み込みエラー: %w", err)
	}

	var mf mappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("マッピングファイル解析エラー: %w", err)
	}

	c.UserMap = models.UserMap(mf.Users)
	c.ProjectMap = models.ProjectMap(mf.Projects)
	c.TicketParentMap = models.TicketParentMap(mf.TicketParents)

	if c.UserMap == nil {
		c.UserMap = models.UserMap{}
	}
	if c.ProjectMap == nil {
		c.ProjectMap = models.ProjectMap{}
	}
	if c.TicketParentMap == nil {
		c.TicketParentMap = models.TicketParentMap{}
	}

	return nil
}

// Validate はエクスポート実行に必要な設定全体を検証します
func (c *Config) Validate() error {
	if err := c.ValidateOffline(); err != nil {
		return err
	}

	if c.FirstTicketNum <= 0 || c.LastTicketNum < c.FirstTicketNum {
		return fmt.Errorf("チケット番号範囲が不正です: %d〜%d", c.FirstTicketNum, c.LastTicketNum)
	}

	return nil
}

// ValidateOffline は変換処理が依存する設定のみを検証します。
// チケット番号範囲はJSONダンプからのオフライン変換では使われません
func (c *Config) ValidateOffline() error {
	if c.SprintlyProjectNum <= 0 {
		return fmt.Errorf("SPRINTLY_PROJECT_NUM が設定されていません")
	}
	if c.JiraProjectKey == "" {
		return fmt.Errorf("JIRA_PROJECT_KEY が設定されていません")
	}
	if c.JiraBaseURL == "" {
		return fmt.Errorf("JIRA_BASE_URL が設定されていません")
	}

	// 移行対象プロジェクトのキーはProjectMapに含まれている必要があります
	key, ok := c.ProjectMap[c.SprintlyProjectNum]
	if !ok {
		return fmt.Errorf("プロジェクト番号 %d がマッピングファイルの projects に見つかりません", c.SprintlyProjectNum)
	}
	if key != c.JiraProjectKey {
		return fmt.Errorf("projects のキー %q と JIRA_PROJECT_KEY %q が一致しません", key, c.JiraProjectKey)
	}

	if c.MaxLabels <= 0 || c.MaxComments <= 0 || c.MaxAttachments <= 0 {
		return fmt.Errorf("列数の上限は正の値である必要があります (labels=%d, comments=%d, attachments=%d)",
			c.MaxLabels, c.MaxComments, c.MaxAttachments)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT は正の値である必要があります: %d", c.MaxConcurrent)
	}

	return nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を整数として取得
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
