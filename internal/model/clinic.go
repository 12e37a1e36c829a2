package model

import "time"

// DefaultPlan は新規クリニックに割り当てられる基本プラン。
const DefaultPlan = "free"

// Clinic はテナント（クリニック）を表す。
// Domain はサブドメインから解決される一意キー、Slug は任意の別名キー。
type Clinic struct {
	ID             string
	Name           string
	Domain         string
	Slug           *string
	Plan           string
	LastActiveDate time.Time
	CreatedAt      time.Time
}
