package corpus

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the text content from an HTML fragment, collapsing
// whitespace. Helpdesk exports wrap ticket descriptions in markup that would
// otherwise pollute keyword matching and the assembled context. Plain text
// passes through unchanged apart from whitespace normalization.
func StripHTML(s string) string {
	if s == "" || !strings.ContainsRune(s, '<') {
		return collapseSpace(s)
	}

	var sb strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return collapseSpace(sb.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tok.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
