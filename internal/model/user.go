// Package model はドメインモデルを定義する。
package model

import "time"

// UserNameMaxLength はユーザー名の最大文字数。
const UserNameMaxLength = 255

// User はサービス利用ユーザーを表す。
// 認証ヘッダーにはユーザー名がそのまま渡されるため、Nameは一意である。
type User struct {
	ID        string
	Name      string `validate:"required,max=255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Follow はユーザー間のフォロー関係を表す。
// (FollowerID, FollowedID) の組は一意で、自分自身のフォローは許可しない。
type Follow struct {
	ID         string
	FollowerID string
	FollowedID string
	CreatedAt  time.Time
}

// FollowedUser はフォロー中ユーザーのIDと名前の組。
// フォロー中サマリーのページングで使用する。
type FollowedUser struct {
	ID   string
	Name string
}
