package models

// Person はSprint.lyのユーザーを表します
type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ID        int    `json:"id"`
	Email     string `json:"email"`
}

// Product はSprint.lyのプロジェクト（キュー）を表します
type Product struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// Item はSprint.lyのアイテム（チケット）を表します
// APIレスポンスに含まれる未知のフィールドは無視されます
type Item struct {
	Number       int      `json:"number"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at"`
	LastModified string   `json:"last_modified"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	CreatedBy    *Person  `json:"created_by"`
	AssignedTo   *Person  `json:"assigned_to"`
	Type         string   `json:"type"`
	Score        string   `json:"score"`
	Product      *Product `json:"product"`
}

// Comment はSprint.lyアイテムのコメントを表します
// Git連携がある場合はコミットもコメントとして含まれます
type Comment struct {
	ID        int     `json:"id"`
	Type      string  `json:"type"`
	Body      string  `json:"body"`
	CreatedAt string  `json:"created_at"`
	CreatedBy *Person `json:"created_by"`
}

// Attachment はSprint.lyアイテムの添付ファイル参照を表します
type Attachment struct {
	Href string `json:"href"`
}

// ItemDump はオフライン変換用のJSONダンプの1件を表します
// （アイテム本体にコメントと添付ファイルをインライン展開したもの）
type ItemDump struct {
	Item
	Comments    []Comment    `json:"comments"`
	Attachments []Attachment `json:"attachments"`
}

// JiraIssue はJIRA CSVインポーター用に変換されたイシューを表します
type JiraIssue struct {
	DateCreated  string
	DateModified string
	IssueID      int
	ParentID     int // 0 の場合は親なし
	IssueKey     string
	Summary      string
	IssueType    string
	Assignee     string // 空文字列は未割り当て
	Reporter     string
	Labels       []string
	Description  string
	Status       string
	Resolution   string // 空文字列は未解決
	Comments     []string
	Attachments  []string
}

// UserMap はSprint.lyメールアドレスからJIRAユーザー名へのマッピングです
// 値がnilのエントリは「退職者など、意図的に未割り当てにする」ことを意味します。
// キー自体が存在しない場合は設定漏れとして扱われます
type UserMap map[string]*string

// ProjectMap はSprint.lyプロジェクト番号からJIRAプロジェクトキーへのマッピングです
type ProjectMap map[int]string

// TicketParentMap は子チケット番号から親チケット番号へのマッピングです
type TicketParentMap map[int]int
