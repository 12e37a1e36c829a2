package model

import "time"

// TokenStatus は受付番号の状態を表す。
type TokenStatus string

const (
	TokenStatusWaiting   TokenStatus = "waiting"
	TokenStatusCalled    TokenStatus = "called"
	TokenStatusServed    TokenStatus = "served"
	TokenStatusSkipped   TokenStatus = "skipped"
	TokenStatusCancelled TokenStatus = "cancelled"
)

// tokenTransitions は許可される状態遷移の一覧。
var tokenTransitions = map[TokenStatus][]TokenStatus{
	TokenStatusWaiting: {TokenStatusCalled, TokenStatusCancelled},
	TokenStatusCalled:  {TokenStatusServed, TokenStatusSkipped, TokenStatusWaiting},
	TokenStatusSkipped: {TokenStatusWaiting},
}

// ParseTokenStatus は文字列を TokenStatus に変換する。未知の値は false を返す。
func ParseTokenStatus(s string) (TokenStatus, bool) {
	switch st := TokenStatus(s); st {
	case TokenStatusWaiting, TokenStatusCalled, TokenStatusServed, TokenStatusSkipped, TokenStatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransitionTo は from から to への遷移が許可されているかを返す。
func (from TokenStatus) CanTransitionTo(to TokenStatus) bool {
	for _, s := range tokenTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Token は患者に発行された受付番号を表す。
// Number はクリニックごと・日ごとに1から採番される。
type Token struct {
	ID          string
	ClinicID    string
	Number      int
	IssuedOn    time.Time
	PatientName string
	Status      TokenStatus
	IssuedAt    time.Time
	CalledAt    *time.Time
	CompletedAt *time.Time
}
