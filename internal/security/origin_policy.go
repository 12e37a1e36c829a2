package security

import (
	"fmt"
	"regexp"
)

// OriginPolicy はクロスオリジンアクセスを許可するオリジンを正規表現で判定する。
// HTTPのCORSとWebSocketのアップグレードで同一のインスタンスを共有する。
type OriginPolicy struct {
	patterns []*regexp.Regexp
}

// NewOriginPolicy はパターン文字列からOriginPolicyを生成する。
// いずれかのパターンがコンパイルできない場合はエラーを返す。
func NewOriginPolicy(patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{}
	for _, s := range patterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid origin pattern %q: %w", s, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed はオリジンが許可されているかを返す。
// Originヘッダのないリクエスト（同一オリジン、curl等）は常に許可する。
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	return p.Matches(origin)
}

// Matches はオリジンがいずれかのパターンに一致するかを返す。
func (p *OriginPolicy) Matches(origin string) bool {
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}
