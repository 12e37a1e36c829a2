// Package model はドメインモデルを定義する。
package model

import "time"

// User はクリニックのスタッフを表す。
// スタッフは seed コマンドで事前登録され、Googleログイン時に Identity と紐付けられる。
type User struct {
	ID        string
	ClinicID  string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はスタッフのログインセッションを表す。
// ClinicDomain は読み出し時にユーザーの所属クリニックから補完され、永続化されない。
type Session struct {
	ID           string
	UserID       string
	ClinicDomain string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
