// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は登録時のプロフィール入力（氏名、住所、店舗情報）から
// HTMLタグを除去し、平文として保存できる形にする。
// bluemondayのStrictPolicyを使用し、タグは一切通過させない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロフィールの自由入力欄をサニタイズするインターフェース。
type ProfileSanitizer interface {
	// Sanitize はHTMLタグを除去した平文を返す。
	// script, styleタグは内容ごと除去される。前後の空白は取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// profileSanitizer はProfileSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 8

// Sanitize はHTMLタグを除去した平文を返す。
// エンティティで隠したタグもデコード後に除去されるよう、出力が変わらなくなるまで
// デコード→サニタイズ→デコードを繰り返す。
// 上限回数で収束しない場合はエスケープ済みの値を返す。
func (s *profileSanitizer) Sanitize(input string) string {
	out := input
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(html.UnescapeString(out)))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(s.policy.Sanitize(out))
}
