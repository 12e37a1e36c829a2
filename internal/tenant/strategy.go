// Package tenant はHostヘッダからテナント識別子を導出する戦略を提供する。
package tenant

import (
	"net"
	"strings"
)

// Strategy はホスト名からテナント識別子を取り出す。
// 識別子が得られない場合は ok=false を返す。これはエラーではない。
type Strategy interface {
	Resolve(host string) (id string, ok bool)
}

// LabelCountStrategy はホスト名のラベル数が MinLabels 以上のとき先頭ラベルを識別子とする。
//
//	ravihospital.lvh.me:3000        (MinLabels=3) -> "ravihospital"
//	lvh.me:3000                     (MinLabels=3) -> なし
//	ravihospital.app.platform.com   (MinLabels=4) -> "ravihospital"
type LabelCountStrategy struct {
	MinLabels int
}

// NewLabelCountStrategy は LabelCountStrategy を生成する。
func NewLabelCountStrategy(minLabels int) *LabelCountStrategy {
	return &LabelCountStrategy{MinLabels: minLabels}
}

// Resolve はStrategyインターフェースを実装する。
// 先頭ラベルは大文字小文字を含めそのまま返す。
func (s *LabelCountStrategy) Resolve(host string) (string, bool) {
	hostname := stripPort(host)
	if hostname == "" || net.ParseIP(hostname) != nil {
		return "", false
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < s.MinLabels || labels[0] == "" {
		return "", false
	}
	return labels[0], true
}

// stripPort はHostヘッダからポートを取り除く。
// IPv6リテラル（[::1]:5000）は角括弧を外したアドレスを返す。
func stripPort(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "[") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			return h
		}
		return strings.Trim(host, "[]")
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}

var _ Strategy = (*LabelCountStrategy)(nil)
