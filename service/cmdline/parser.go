// Package cmdline splits a command line into a program path and its
// arguments for exec and spawn.
package cmdline

import (
	"errors"
	"strings"

	"github.com/viant/parsly"
)

// ErrEmpty is returned for a line with no program path.
var ErrEmpty = errors.New("cmdline: empty command")

// Parse splits line into words. Words are separated by whitespace, quoted
// words keep their inner whitespace, adjacent fragments join ("a"b is ab).
// The first word is the path; all words, path included, form argv.
func Parse(line string) (string, []string, error) {
	cursor := parsly.NewCursor("", []byte(line), 0)
	var args []string
	var word strings.Builder
	inWord := false
	flush := func() {
		if inWord {
			args = append(args, word.String())
			word.Reset()
			inWord = false
		}
	}
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(whitespaceToken, quotedToken, wordToken)
		switch matched.Code {
		case whitespaceCode:
			flush()
		case quotedCode:
			word.WriteString(unquote(matched.Text(cursor)))
			inWord = true
		case wordCode:
			word.WriteString(matched.Text(cursor))
			inWord = true
		default:
			return "", nil, cursor.NewError(quotedToken, wordToken)
		}
	}
	flush()
	if len(args) == 0 {
		return "", nil, ErrEmpty
	}
	return args[0], args, nil
}

func unquote(text string) string {
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
