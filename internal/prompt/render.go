package prompt

import "strings"

// Render substitutes {name} placeholders from vars in a single pass.
// A placeholder whose name is absent from vars renders as the empty string
// and is reported in the returned missing list; brace pairs that do not
// form a valid placeholder name pass through unchanged.
func Render(template string, vars map[string]string) (string, []string) {
	var b strings.Builder
	b.Grow(len(template))
	var missing []string

	for i := 0; i < len(template); {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}

		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}

		name := template[i+1 : i+1+end]
		if !validPlaceholderName(name) {
			b.WriteByte('{')
			i++
			continue
		}

		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else {
			missing = append(missing, name)
		}
		i += end + 2
	}

	return b.String(), missing
}

func validPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
