// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, tenant, queue, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTenantNotResolved  = "TENANT_NOT_RESOLVED"
	ErrCodeClinicNotFound     = "CLINIC_NOT_FOUND"
	ErrCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	ErrCodeInvalidTicket      = "INVALID_TICKET"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeQueueEmpty         = "QUEUE_EMPTY"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeStaffNotRegistered = "STAFF_NOT_REGISTERED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// NewTenantNotResolvedError はサブドメインからテナントを解決できなかった場合のエラーを生成する。
func NewTenantNotResolvedError() *APIError {
	return &APIError{
		Code:     ErrCodeTenantNotResolved,
		Message:  "Subdomain not provided",
		Category: "tenant",
		Action:   "クリニックのサブドメイン（例: ravihospital.lvh.me）からアクセスしてください。",
	}
}

// NewClinicNotFoundError はクリニック未登録エラーを生成する。
func NewClinicNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeClinicNotFound,
		Message:  fmt.Sprintf("Clinic not found: %s", key),
		Category: "tenant",
		Action:   "URLのサブドメインが正しいか確認してください。",
	}
}

// NewTokenNotFoundError は受付番号未検出エラーを生成する。
func NewTokenNotFoundError(tokenID string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  fmt.Sprintf("指定された受付番号が見つかりません: %s", tokenID),
		Category: "queue",
		Action:   "受付番号を確認してください。",
	}
}

// NewInvalidTicketError は受付チケットの検証に失敗した場合のエラーを生成する。
func NewInvalidTicketError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTicket,
		Message:  "受付チケットが無効です。",
		Category: "validation",
		Action:   "受付時に発行されたチケットを使用してください。有効期限切れの場合は再度受付してください。",
	}
}

// NewInvalidStatusError は未知のステータス指定エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには waiting、called、served、skipped、cancelled のいずれかを指定してください。",
	}
}

// NewInvalidTransitionError は許可されていない状態遷移のエラーを生成する。
func NewInvalidTransitionError(from, to TokenStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("%s から %s へは変更できません。", from, to),
		Category: "queue",
		Action:   "画面を再読み込みして最新の状態を確認してください。",
	}
}

// NewQueueEmptyError は待ち患者がいない場合のエラーを生成する。
func NewQueueEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeQueueEmpty,
		Message:  "待っている患者はいません。",
		Category: "queue",
		Action:   "新しい受付があるまでお待ちください。",
	}
}

// NewForbiddenError は他クリニックのリソースへのアクセスを拒否するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このクリニックを操作する権限がありません。",
		Category: "auth",
		Action:   "所属クリニックのサブドメインからログインし直してください。",
	}
}

// NewStaffNotRegisteredError は未登録のアカウントでログインしようとした場合のエラーを生成する。
func NewStaffNotRegisteredError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeStaffNotRegistered,
		Message:  fmt.Sprintf("スタッフとして登録されていません: %s", email),
		Category: "auth",
		Action:   "クリニックの管理者にスタッフ登録を依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRequestError はリクエストボディの形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
