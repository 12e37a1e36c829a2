// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は患者名などの利用者入力からHTMLを除去する。
// OriginPolicy はHTTPとWebSocketで共有するオリジン許可ポリシー。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxPatientNameLength は患者名として保持する最大文字数（rune単位）。
const MaxPatientNameLength = 100

// TextSanitizerService はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はすべてのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, style の中身は破棄される。maxRunes を超える部分は切り捨てる。
	Sanitize(raw string, maxRunes int) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLを除去したプレーンテキストを返す。
// StrictPolicy はエスケープ済みの文字列を返すため、表示用に1回だけアンエスケープする。
func (s *textSanitizer) Sanitize(raw string, maxRunes int) string {
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.Join(strings.Fields(text), " ")

	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		text = string([]rune(text)[:maxRunes])
	}
	return text
}
