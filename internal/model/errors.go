// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sleep, follow, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDateRangeTooLong     = "DATE_RANGE_TOO_LONG"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidUserName      = "INVALID_USER_NAME"
	ErrCodeDuplicateUserName    = "DUPLICATE_USER_NAME"
	ErrCodeSleepSessionNotFound = "SLEEP_SESSION_NOT_FOUND"
	ErrCodeActiveSessionExists  = "ACTIVE_SESSION_EXISTS"
	ErrCodeAlreadyClockedOut    = "ALREADY_CLOCKED_OUT"
	ErrCodeSleepTooShort        = "SLEEP_TOO_SHORT"
	ErrCodeCannotFollowSelf     = "CANNOT_FOLLOW_SELF"
	ErrCodeAlreadyFollowing     = "ALREADY_FOLLOWING"
	ErrCodeFollowNotFound       = "FOLLOW_NOT_FOUND"
	ErrCodeSummaryInvalid       = "SUMMARY_INVALID"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewDateRangeTooLongError は集計期間が上限を超えた場合のエラーを生成する。
func NewDateRangeTooLongError(maxDays int) *APIError {
	return &APIError{
		Code:     ErrCodeDateRangeTooLong,
		Message:  "Date range is too long",
		Category: "validation",
		Action:   fmt.Sprintf("集計期間は%d日以内で指定してください。", maxDays),
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidUserNameError はユーザー名が不正な場合のエラーを生成する。
func NewInvalidUserNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUserName,
		Message:  fmt.Sprintf("ユーザー名は1〜%d文字で指定してください。", UserNameMaxLength),
		Category: "validation",
		Action:   "ユーザー名を見直してください。",
	}
}

// NewDuplicateUserNameError は同名ユーザーが既に存在する場合のエラーを生成する。
func NewDuplicateUserNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUserName,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", name),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewSleepSessionNotFoundError は睡眠セッションが見つからない場合のエラーを生成する。
func NewSleepSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSleepSessionNotFound,
		Message:  "Sleep record not found",
		Category: "sleep",
		Action:   "睡眠記録IDを確認してください。",
	}
}

// NewActiveSessionExistsError は既にアクティブな睡眠セッションがある場合のエラーを生成する。
func NewActiveSessionExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeActiveSessionExists,
		Message:  "User already has an active sleep record",
		Category: "sleep",
		Action:   "現在の睡眠記録を終了してから再度お試しください。",
	}
}

// NewAlreadyClockedOutError は起床記録済みのセッションを再度終了しようとした場合のエラーを生成する。
func NewAlreadyClockedOutError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyClockedOut,
		Message:  "Sleep record has already been clocked out",
		Category: "sleep",
		Action:   "新しい睡眠記録を開始してください。",
	}
}

// NewSleepTooShortError は睡眠時間が最短時間に満たない場合のエラーを生成する。
func NewSleepTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeSleepTooShort,
		Message:  fmt.Sprintf("sleep duration must be at least %d minutes", MinimumSleepDurationMinutes),
		Category: "sleep",
		Action:   "しばらく待ってから起床を記録してください。",
	}
}

// NewCannotFollowSelfError は自分自身をフォローしようとした場合のエラーを生成する。
func NewCannotFollowSelfError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotFollowSelf,
		Message:  "Cannot follow yourself",
		Category: "follow",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewAlreadyFollowingError は既にフォロー済みの場合のエラーを生成する。
func NewAlreadyFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  "is already following this user",
		Category: "follow",
		Action:   "フォロー一覧を確認してください。",
	}
}

// NewFollowNotFoundError はフォロー関係が存在しない場合のエラーを生成する。
func NewFollowNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFollowNotFound,
		Message:  "Follow relationship not found",
		Category: "follow",
		Action:   "フォロー中のユーザーを指定してください。",
	}
}

// NewSummaryInvalidError は日次サマリーの検証に失敗した場合のエラーを生成する。
// messagesにはフィールド単位の検証メッセージを渡す。
func NewSummaryInvalidError(messages []string) *APIError {
	return &APIError{
		Code:     ErrCodeSummaryInvalid,
		Message:  strings.Join(messages, ", "),
		Category: "system",
		Action:   "睡眠記録の内容を確認してください。",
	}
}

// NewUnauthorizedError は認証できなかった場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Authorizationヘッダーに登録済みのユーザー名を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewRateLimitExceededError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーのレスポンス用エラーを生成する。
// 原因の詳細は含めず、ログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
