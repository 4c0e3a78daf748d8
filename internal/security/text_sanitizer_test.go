package security

import "testing"

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "gm farcaster", "gm farcaster"},
		{"空文字列", "", ""},
		{"不等号を含む本文を保持", "a<b is fine but c>d", "a<b is fine but c>d"},
		{"タグに見える本文を保持", "use <div> for layout", "use <div> for layout"},
		{"文字実体はそのまま", "memes &amp; vibes", "memes &amp; vibes"},
		{"アンパサンドは保持", "memes & vibes", "memes & vibes"},
		{"改行は保持", "line1\nline2", "line1\nline2"},
		{"制御文字を除去", "a\x00b\x07c", "abc"},
		{"絵文字と日本語", "おはよう 🎩", "おはよう 🎩"},
		{"前後の空白を除去", "  gm  ", "gm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	inputs := []string{
		"<p>hello</p> & <b>bye</b>",
		"price < 5 && > 3",
		" \x01plain\n",
	}
	for _, in := range inputs {
		once := s.Sanitize(in)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize is not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "degen", "degen"},
		{"空文字列", "", ""},
		{"タグを除去", "<b>gm</b> <i>degen</i>", "gm degen"},
		{"scriptは内容ごと除去", "<script>alert(1)</script>memes", "memes"},
		{"文字実体を戻す", "art &amp; music", "art & music"},
		{"前後の空白を除去", "  <span> base </span> ", "base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkup(tt.input); got != tt.want {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
