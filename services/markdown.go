package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sprintlytojira/models"
	"sprintlytojira/utils"
)

var (
	// [テキスト](https://sprint.ly/product/P/item/N...) 形式のMarkdownリンク。
	// アイテム番号以降のパスセグメントは無視します
	sprintlyLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(https?://sprint\.ly/product/(\d+)/item/(\d+)[^)]*\)`)

	// 本文中の #123 形式の同一プロジェクト内参照
	bareMentionRe = regexp.MustCompile(`#\d+`)
)

// MarkdownRewriter は本文中のSprint.lyクロスリファレンスをJIRAリンク記法に書き換えます
type MarkdownRewriter struct {
	projectMap   models.ProjectMap
	jiraBaseURL  string
	projectNum   int
	warnUnmapped bool
}

// NewMarkdownRewriter は新しいMarkdownリライターを作成します。
// projectNumは移行中のキューのSprint.lyプロジェクト番号で、
// #123 形式の参照はこのプロジェクトのアイテムとして解決されます
func NewMarkdownRewriter(projectMap models.ProjectMap, jiraBaseURL string, projectNum int, warnUnmapped bool) *MarkdownRewriter {
	return &MarkdownRewriter{
		projectMap:   projectMap,
		jiraBaseURL:  strings.TrimRight(jiraBaseURL, "/"),
		projectNum:   projectNum,
		warnUnmapped: warnUnmapped,
	}
}

// Rewrite は本文中のすべてのクロスリファレンスをJIRA記法に書き換えます。
// 認識されないテキストは一切変更されず、既に書き換え済みのリンクは
// 二重リンクにならないようスキップされます（冪等）
func (r *MarkdownRewriter) Rewrite(text string) string {
	return r.rewriteMentions(r.rewriteLinks(text))
}

// rewriteLinks はSprint.lyアイテムへのMarkdownリンクをJIRAリンクに変換します
func (r *MarkdownRewriter) rewriteLinks(text string) string {
	return sprintlyLinkRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := sprintlyLinkRe.FindStringSubmatch(match)
		linkText := groups[1]
		projectNum, _ := strconv.Atoi(groups[2])
		itemNum := groups[3]

		key, ok := r.projectMap[projectNum]
		if !ok {
			// マッピングに無いプロジェクトへのリンクはそのまま残します
			if r.warnUnmapped {
				utils.LogWarn("プロジェクト番号 %d がProjectMapに見つからないため、リンクを書き換えません: %s", projectNum, match)
			}
			return match
		}

		return fmt.Sprintf("[%s|%s/browse/%s-%s]", linkText, r.jiraBaseURL, key, itemNum)
	})
}

// rewriteMentions は #123 形式の参照を同一プロジェクトのJIRAリンクに変換します。
// 既にJIRAリンク内にある番号（直前が「[」または「|」、直後が「|」）はスキップします
func (r *MarkdownRewriter) rewriteMentions(text string) string {
	key, ok := r.projectMap[r.projectNum]
	if !ok {
		if r.warnUnmapped {
			utils.LogWarn("移行中のプロジェクト番号 %d がProjectMapに見つからないため、#参照を書き換えません", r.projectNum)
		}
		return text
	}

	locs := bareMentionRe.FindAllStringIndex(text, -1)
	if locs == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]

		// 書き換え済みリンク [#123|https://...] の内部は対象外
		if start > 0 && (text[start-1] == '[' || text[start-1] == '|') {
			continue
		}
		if end < len(text) && text[end] == '|' {
			continue
		}

		itemNum := text[start+1 : end]
		b.WriteString(text[last:start])
		b.WriteString(fmt.Sprintf("[#%s|%s/browse/%s-%s]", itemNum, r.jiraBaseURL, key, itemNum))
		last = end
	}
	b.WriteString(text[last:])

	return b.String()
}
