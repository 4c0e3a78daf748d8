package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, snapshot, system
	Action   string // 対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInvalidDate       = "INVALID_DATE"
	ErrCodeInvalidLimit      = "INVALID_LIMIT"
	ErrCodeSnapshotNotFound  = "SNAPSHOT_NOT_FOUND"
	ErrCodeForceNotAllowed   = "FORCE_NOT_ALLOWED"
	ErrCodeSnapshotConflict  = "SNAPSHOT_CONFLICT"
	ErrCodeSnapshotJobFailed = "SNAPSHOT_JOB_FAILED"
)

var (
	// ErrSnapshotConflict は同じ日付のスナップショットが既に存在する状態でINSERTした場合のエラー。
	// 冪等性チェックとの競合（同時実行）を示すため、握りつぶさずに呼び出し元へ返す。
	ErrSnapshotConflict = errors.New("snapshot for this date already exists")

	// ErrUnauthorized は共有シークレットが欠落・不一致の場合のエラー。
	ErrUnauthorized = errors.New("missing or invalid shared secret")
)

// StorageError はスナップショットストアの操作失敗を表す。
type StorageError struct {
	Op  string // insert, exists, delete_older_than など
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot store %s failed: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "Authorization: Bearer ヘッダーに正しいシークレットを指定してください。",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("許可されていないメソッドです: %s", method),
		Category: "validation",
		Action:   "GETメソッドでリクエストしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "validation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", date),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidLimitError は件数指定が不正な場合のエラーを生成する。
func NewInvalidLimitError(limit string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な件数です: %s", limit),
		Category: "validation",
		Action:   "limitには1から7の整数を指定してください。",
	}
}

// NewSnapshotNotFoundError はスナップショット未検出エラーを生成する。
func NewSnapshotNotFoundError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeSnapshotNotFound,
		Message:  fmt.Sprintf("指定された日付のスナップショットがありません: %s", date),
		Category: "snapshot",
		Action:   "直近7日以内の日付を指定してください。",
	}
}

// NewForceNotAllowedError はシークレット未設定で強制再生成を要求された場合のエラーを生成する。
func NewForceNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeForceNotAllowed,
		Message:  "強制再生成にはシークレットの設定が必要です。",
		Category: "auth",
		Action:   "CRON_SECRET を設定してから再度お試しください。",
	}
}
