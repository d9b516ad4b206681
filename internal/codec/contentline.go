package codec

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxLineOctets is the RFC 5545 / RFC 6350 limit for a physical line,
// excluding the CRLF.
const maxLineOctets = 75

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// escapeText escapes a TEXT value. Line breaks of any style become \n.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// unescapeText reverses escapeText. Unknown escapes are kept as-is.
func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case '\\', ';', ',':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// joinStructured escapes each component and joins them with ';', as used by
// N and ORG.
func joinStructured(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = escapeText(p)
	}
	return strings.Join(escaped, ";")
}

// splitStructured splits a raw value on unescaped ';'. Components stay
// escaped.
func splitStructured(raw string) []string {
	var (
		parts   []string
		start   int
		escaped bool
	)
	for i := 0; i < len(raw); i++ {
		switch {
		case escaped:
			escaped = false
		case raw[i] == '\\':
			escaped = true
		case raw[i] == ';':
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return append(parts, raw[start:])
}

// Parameter values use RFC 6868 caret encoding for the characters a quoted
// value cannot hold.
var (
	paramEscaper = strings.NewReplacer(
		"^", "^^",
		`"`, "^'",
		"\r\n", "^n",
		"\n", "^n",
		"\r", "^n",
	)
	paramUnescaper = strings.NewReplacer(
		"^^", "^",
		"^'", `"`,
		"^n", "\n",
		"^N", "\n",
	)
)

// unescapeParam reverses the caret encoding of a parameter value. A caret
// followed by anything else is kept.
func unescapeParam(v string) string {
	if !strings.Contains(v, "^") {
		return v
	}
	return paramUnescaper.Replace(v)
}

func formatParamValue(v string) string {
	v = paramEscaper.Replace(v)
	if strings.ContainsAny(v, ":;,") {
		return `"` + v + `"`
	}
	return v
}

// lineWriter accumulates folded, CRLF-terminated content lines.
type lineWriter struct {
	buf bytes.Buffer
}

func (w *lineWriter) writeLine(name string, params map[string][]string, value string) {
	var b strings.Builder
	b.WriteString(name)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(params[k]) == 0 {
			continue
		}
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		for i, v := range params[k] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatParamValue(v))
		}
	}
	b.WriteByte(':')
	b.WriteString(value)

	w.fold(b.String())
}

// fold writes line split into chunks of at most maxLineOctets octets without
// breaking a UTF-8 sequence. Continuation lines begin with a single space.
func (w *lineWriter) fold(line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// No rune boundary in reach: the input is not valid UTF-8.
			cut = limit
		}
		w.buf.WriteString(line[:cut])
		w.buf.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	w.buf.WriteString(line)
	w.buf.WriteString("\r\n")
}

func (w *lineWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// contentLine is one unfolded "group.NAME;PARAM=v:value" line. The value is
// kept in its escaped form.
type contentLine struct {
	Group  string
	Name   string
	Params map[string][]string
	Value  string
}

// unfoldLines splits data into logical lines, joining continuation lines
// that start with a space or tab. Empty lines are dropped.
func unfoldLines(data []byte) []string {
	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if raw == "" {
			continue
		}
		if (raw[0] == ' ' || raw[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

// parseContentLine reports false when s is not a syntactically valid
// content line.
func parseContentLine(s string) (contentLine, bool) {
	var cl contentLine

	i := strings.IndexAny(s, ";:")
	if i <= 0 {
		return cl, false
	}
	name := s[:i]
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		cl.Group, name = name[:dot], name[dot+1:]
	}
	if name == "" || strings.ContainsAny(name, " \t\"") {
		return cl, false
	}
	cl.Name = strings.ToUpper(name)

	rest := s[i:]
	for len(rest) > 0 && rest[0] == ';' {
		rest = rest[1:]
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return cl, false
		}
		key := strings.ToUpper(rest[:eq])
		rest = rest[eq+1:]

		var values []string
		for {
			var v string
			if strings.HasPrefix(rest, `"`) {
				end := strings.IndexByte(rest[1:], '"')
				if end < 0 {
					return cl, false
				}
				v, rest = rest[1:end+1], rest[end+2:]
			} else {
				end := strings.IndexAny(rest, ",;:")
				if end < 0 {
					return cl, false
				}
				v, rest = rest[:end], rest[end:]
			}
			values = append(values, unescapeParam(v))
			if !strings.HasPrefix(rest, ",") {
				break
			}
			rest = rest[1:]
		}

		if cl.Params == nil {
			cl.Params = make(map[string][]string)
		}
		cl.Params[key] = append(cl.Params[key], values...)
	}

	if !strings.HasPrefix(rest, ":") {
		return cl, false
	}
	cl.Value = rest[1:]
	return cl, true
}
