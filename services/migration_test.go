package services_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintlytojira/api"
	"sprintlytojira/config"
	"sprintlytojira/models"
	"sprintlytojira/services"
)

// fakeSource はテスト用のItemSourceです。登録されていない番号はErrItemNotFoundを返します
type fakeSource struct {
	items       map[int]*models.Item
	comments    map[int][]models.Comment
	attachments map[int][]models.Attachment
}

func (f *fakeSource) FetchItem(_ context.Context, number int) (*models.Item, error) {
	item, ok := f.items[number]
	if !ok {
		return nil, api.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeSource) FetchComments(_ context.Context, number int) ([]models.Comment, error) {
	return f.comments[number], nil
}

func (f *fakeSource) FetchAttachments(_ context.Context, number int) ([]models.Attachment, error) {
	return f.attachments[number], nil
}

func sourceItem(number int, email string) *models.Item {
	person := &models.Person{FirstName: "Mark", ID: 1, Email: email}
	return &models.Item{
		Number:       number,
		Status:       "completed",
		CreatedAt:    "2013-06-14T22:52:07+00:00",
		LastModified: "2013-06-14T21:53:43+00:00",
		Title:        "Hello",
		Description:  "Hello World",
		Tags:         []string{"backlog"},
		CreatedBy:    person,
		AssignedTo:   person,
		Type:         "task",
	}
}

func newTestMigration(t *testing.T, source services.ItemSource, first, last int) (*services.MigrationService, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		SprintlyProjectNum: 11122,
		JiraProjectKey:     "UFS",
		JiraBaseURL:        "https://yourcorp.atlassian.net",
		FirstTicketNum:     first,
		LastTicketNum:      last,
		MaxLabels:          10,
		MaxComments:        50,
		MaxAttachments:     20,
		MaxConcurrent:      4,
		OutputCSV:          filepath.Join(t.TempDir(), "jira_import_ready.csv"),
		UserMap:            newTestUserMap(),
		ProjectMap:         models.ProjectMap{11122: "UFS", 12345: "DEMO"},
		TicketParentMap:    models.TicketParentMap{2: 1},
	}

	rewriter := services.NewMarkdownRewriter(cfg.ProjectMap, cfg.JiraBaseURL, cfg.SprintlyProjectNum, false)
	users := services.NewUserMapper(cfg.UserMap)
	transformer := services.NewItemTransformer(cfg.JiraProjectKey, cfg.TicketParentMap, users, rewriter, &fakeResolver{}, cfg.MaxConcurrent)
	builder := services.NewCSVBuilder(cfg)

	return services.NewMigrationService(cfg, source, transformer, builder), cfg
}

func TestExportRange(t *testing.T) {
	source := &fakeSource{
		items: map[int]*models.Item{
			1: sourceItem(1, "employee@rideamigos.com"),
			2: sourceItem(2, "employee@rideamigos.com"),
			// 3は欠番（削除済みチケット）
			4: sourceItem(4, "forgot.bob@rideamigos.com"),
			5: sourceItem(5, "employee@rideamigos.com"),
		},
		comments: map[int][]models.Comment{
			1: {{Body: "Hello.", CreatedAt: "2018-07-01T00:00:00+00:00",
				CreatedBy: &models.Person{FirstName: "Mark", Email: "employee@rideamigos.com"}}},
		},
		attachments: map[int][]models.Attachment{
			5: {{Href: "https://sprint.ly/product/11122/file/1"}},
		},
	}

	migration, _ := newTestMigration(t, source, 1, 5)

	rows, report, err := migration.ExportRange(context.Background())
	require.NoError(t, err)

	// ヘッダー + 成功した3件（1, 2, 5）。番号順が維持されます
	require.Len(t, rows, 4)
	assert.Equal(t, "UFS-1", rows[1][0])
	assert.Equal(t, "UFS-2", rows[2][0])
	assert.Equal(t, "UFS-5", rows[3][0])

	// 2は親チケットを持つのでSub-Task
	assert.Equal(t, "1", rows[2][2])
	assert.Equal(t, "Sub-Task", rows[2][3])

	// 欠番はスキップ、マッピング漏れは失敗として報告されます
	assert.Equal(t, 3, report.Exported)
	assert.Equal(t, []int{3}, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 4, report.Failures[0].Number)

	var unmappedErr *services.UnmappedUserError
	require.ErrorAs(t, report.Failures[0].Err, &unmappedErr)
	assert.Equal(t, "forgot.bob@rideamigos.com", unmappedErr.Email)
	assert.True(t, report.HasFailures())
}

// cancellingSource は指定番号の取得時にコンテキストをキャンセルします
// （処理中のCtrl-Cを再現するためのItemSource）
type cancellingSource struct {
	*fakeSource
	cancelOn int
	cancel   context.CancelFunc
}

func (c *cancellingSource) FetchItem(ctx context.Context, number int) (*models.Item, error) {
	if number == c.cancelOn {
		c.cancel()
	}
	return c.fakeSource.FetchItem(ctx, number)
}

func TestRunInterruptedWritesProducedRows(t *testing.T) {
	inner := &fakeSource{
		items: map[int]*models.Item{
			1: sourceItem(1, "employee@rideamigos.com"),
			2: sourceItem(2, "employee@rideamigos.com"),
			3: sourceItem(3, "employee@rideamigos.com"),
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := &cancellingSource{fakeSource: inner, cancelOn: 2, cancel: cancel}

	migration, cfg := newTestMigration(t, source, 1, 3)

	// アイテム2の処理中に中断されます。中断はアイテム境界で検出されるため、
	// アイテム2までが変換され、アイテム3は処理されません
	err := migration.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	file, err := os.Open(cfg.OutputCSV)
	require.NoError(t, err, "中断時も生成済みの行が書き込まれている")
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	// ヘッダー + 中断前に変換が完了したアイテム1と2
	require.Len(t, records, 3)
	assert.Equal(t, "Issue Key", records[0][0])
	assert.Equal(t, "UFS-1", records[1][0])
	assert.Equal(t, "UFS-2", records[2][0])
}

func TestExportRangeCancellation(t *testing.T) {
	source := &fakeSource{
		items: map[int]*models.Item{
			1: sourceItem(1, "employee@rideamigos.com"),
			2: sourceItem(2, "employee@rideamigos.com"),
		},
	}

	migration, _ := newTestMigration(t, source, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// キャンセル済みの場合もヘッダー行は返され、エラーで停止します
	rows, _, err := migration.ExportRange(ctx)
	require.Error(t, err)
	assert.Len(t, rows, 1)
}

func TestRunWritesCSV(t *testing.T) {
	source := &fakeSource{
		items: map[int]*models.Item{
			1: sourceItem(1, "employee@rideamigos.com"),
		},
	}

	migration, cfg := newTestMigration(t, source, 1, 1)

	require.NoError(t, migration.Run(context.Background()))

	file, err := os.Open(cfg.OutputCSV)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "Issue Key", records[0][0])
	assert.Equal(t, "UFS-1", records[1][0])
	assert.Len(t, records[1], 12+10+50+20)
}

func TestRunReportsFailures(t *testing.T) {
	source := &fakeSource{
		items: map[int]*models.Item{
			1: sourceItem(1, "forgot.bob@rideamigos.com"),
		},
	}

	migration, cfg := newTestMigration(t, source, 1, 1)

	// アイテム単位の失敗があってもCSVは書き込まれ、最後にエラーとして報告されます
	err := migration.Run(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(cfg.OutputCSV)
	assert.NoError(t, statErr)
}

func TestTransformDump(t *testing.T) {
	migration, _ := newTestMigration(t, nil, 1, 1)

	dumps := []models.ItemDump{
		{
			Item: *sourceItem(123, "employee@rideamigos.com"),
			Comments: []models.Comment{
				{Body: "Hello.", CreatedAt: "2018-07-01T00:00:00+00:00",
					CreatedBy: &models.Person{FirstName: "Mark", Email: "employee@rideamigos.com"}},
			},
			Attachments: []models.Attachment{{Href: "https://sprint.ly/product/11122/file/1"}},
		},
		{
			Item: *sourceItem(456, "forgot.bob@rideamigos.com"),
		},
	}

	rows, report, err := migration.TransformDump(context.Background(), dumps)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "UFS-123", rows[1][0])

	assert.Equal(t, 1, report.Exported)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 456, report.Failures[0].Number)
}

func TestReadDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	data := `[
	  {
	    "number": 188,
	    "status": "backlog",
	    "title": "Hello",
	    "created_by": {"first_name": "Mark", "id": 1, "email": "employee@rideamigos.com"},
	    "comments": [{"body": "Hi.", "created_at": "2018-07-01T00:00:00+00:00"}],
	    "attachments": [{"href": "https://sprint.ly/product/11122/file/1"}]
	  }
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	dumps, err := services.ReadDump(path)
	require.NoError(t, err)

	require.Len(t, dumps, 1)
	assert.Equal(t, 188, dumps[0].Number)
	assert.Len(t, dumps[0].Comments, 1)
	assert.Len(t, dumps[0].Attachments, 1)
}
