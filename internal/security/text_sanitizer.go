package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はキャスト本文を保存できる形に正規化する。
type TextSanitizer interface {
	// Sanitize は制御文字を除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// textSanitizer はキャスト本文をプレーンテキストとして扱う。
// "<" や ">" を含む本文もそのまま保持し、HTMLとしての解釈は行わない。
// 表示側でエスケープすること。
type textSanitizer struct{}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{}
}

// Sanitize は改行とタブ以外の制御文字を除去し、前後の空白を取り除く。
func (s *textSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(stripControl(text))
}

// markupPolicy は全タグを除去する。script/styleは要素の内容ごと除去される。
var markupPolicy = bluemonday.StrictPolicy()

// StripMarkup はHTMLを含みうる外部フィードの文字列からタグを除去し、
// 文字実体を元に戻したプレーンテキストを返す。
// チャンネルディレクトリのタイトル・カテゴリのようにマークアップが混入しうる値にのみ使用し、
// キャスト本文には使用しない。
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(stripControl(html.UnescapeString(markupPolicy.Sanitize(s))))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
