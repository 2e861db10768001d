package registration

import "strings"

// markdownV2Special lists every character Telegram requires to be escaped
// in MarkdownV2 text outside of code entities.
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes s for use as plain MarkdownV2 text.
func EscapeMarkdownV2(s string) string {
	return escape(s, markdownV2Special)
}

// EscapeMarkdownV2Code escapes s for use inside a code or pre entity, where
// only the backtick and backslash are special.
func EscapeMarkdownV2Code(s string) string {
	return escape(s, "`\\")
}

func escape(s, special string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)

	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}
