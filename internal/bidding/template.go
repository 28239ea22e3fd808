package bidding

import (
	"strconv"
	"strings"

	"github.com/blackwell-systems/bidctl/internal/condition"
)

// RenderTemplate substitutes metric placeholders in tmpl. A placeholder is
// {name} or {name:.Nf} where N is the number of decimals. "{{" and "}}"
// produce literal braces. Unknown names and malformed placeholders are
// copied through unchanged.
func RenderTemplate(tmpl string, env condition.Env) string {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl
	}

	var sb strings.Builder
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			sb.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			sb.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				sb.WriteString(tmpl[i:])
				return sb.String()
			}
			placeholder := tmpl[i+1 : i+end]
			if s, ok := renderPlaceholder(placeholder, env); ok {
				sb.WriteString(s)
			} else {
				sb.WriteString(tmpl[i : i+end+1])
			}
			i += end + 1
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

func renderPlaceholder(p string, env condition.Env) (string, bool) {
	name, spec, hasSpec := strings.Cut(p, ":")
	v, ok := env.Lookup(strings.TrimSpace(name))
	if !ok {
		return "", false
	}
	// Without a spec the shortest form is used, so counts read "6", not "6.0".
	if !hasSpec {
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	// Only fixed-point ".Nf" is supported.
	if len(spec) < 3 || spec[0] != '.' || spec[len(spec)-1] != 'f' {
		return "", false
	}
	prec, err := strconv.Atoi(spec[1 : len(spec)-1])
	if err != nil || prec < 0 || prec > 10 {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', prec, 64), true
}
