package services

import (
	"fmt"

	"sprintlytojira/models"
)

// LookupResult はユーザーマッピング検索の3状態を表します。
// 「キーが存在して値がnull」と「キー自体が存在しない」は別の状態として扱います
type LookupResult int

const (
	// UserMapped はJIRAユーザー名への対応が見つかったことを表します
	UserMapped LookupResult = iota
	// UserUnassigned は意図的な未割り当て（退職者など、値がnullのエントリ）を表します
	UserUnassigned
	// UserUnknown はUserMapにエントリが存在しないことを表します（設定漏れ）
	UserUnknown
)

// UnmappedUserError はUserMapにエントリの無いメールアドレスを表します。
// 間違った担当者を黙って割り当てると移行先のデータが壊れるため、
// デフォルト値で補完せずエラーとして報告します
type UnmappedUserError struct {
	Email string
}

func (e *UnmappedUserError) Error() string {
	return fmt.Sprintf("ユーザーマッピングが見つかりません: %s", e.Email)
}

// UserMapper はSprint.lyユーザー（メールアドレス）をJIRAユーザー名に変換します
type UserMapper struct {
	userMap models.UserMap
}

// NewUserMapper は新しいユーザーマッパーを作成します
func NewUserMapper(userMap models.UserMap) *UserMapper {
	return &UserMapper{userMap: userMap}
}

// Lookup はユーザーの対応を3状態で返します。
// personがnilの場合（未割り当てアイテム）はマップを参照せずUserUnassignedを返します
func (m *UserMapper) Lookup(person *models.Person) (string, LookupResult) {
	if person == nil {
		return "", UserUnassigned
	}

	username, ok := m.userMap[person.Email]
	if !ok {
		return "", UserUnknown
	}
	if username == nil {
		return "", UserUnassigned
	}

	return *username, UserMapped
}

// Map はJIRAユーザー名を返します。未割り当ての場合は空文字列、
// UserMapにエントリが無い場合はUnmappedUserErrorを返します
func (m *UserMapper) Map(person *models.Person) (string, error) {
	username, result := m.Lookup(person)
	if result == UserUnknown {
		return "", &UnmappedUserError{Email: person.Email}
	}
	return username, nil
}

// DisplayName はコメント作成者などの表示専用文脈で使う名前を返します。
// マッピングがあればJIRAユーザー名、無ければ元の名前にフォールバックします
// （歴史的なコメントの作成者表示は所有権の移転ではないため、失敗させません）
func (m *UserMapper) DisplayName(person *models.Person) string {
	if person == nil {
		return "unknown"
	}

	if username, result := m.Lookup(person); result == UserMapped {
		return username
	}

	if person.FirstName != "" {
		return person.FirstName
	}
	if person.Email != "" {
		return person.Email
	}
	return "unknown"
}
