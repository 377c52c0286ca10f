package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Texter is implemented by values with a hand-written human rendering.
type Texter interface {
	Text() string
}

// WriteText writes a human-readable rendering. A {"data": x} envelope is unwrapped first.
// Values implementing Texter render themselves; anything else is walked through its JSON form
// as indented "key: value" lines.
func WriteText(w io.Writer, v any) error {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if d, ok := m["data"]; ok {
			v = d
		}
	}
	if t, ok := v.(Texter); ok {
		s := t.Text()
		if !strings.HasSuffix(s, "\n") {
			s += "\n"
		}
		_, err := io.WriteString(w, s)
		return err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	var buf bytes.Buffer
	writeTextAny(&buf, x, 0)
	if buf.Len() == 0 || buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "-", true
	case bool:
		return strconv.FormatBool(t), true
	case string:
		if t == "" {
			return `""`, true
		}
		return t, true
	case float64:
		// JSON numbers decode as float64; print integral values as ints.
		if float64(int64(t)) == t {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func writeTextAny(buf *bytes.Buffer, v any, level int) {
	pad := strings.Repeat("  ", level)
	if s, ok := scalar(v); ok {
		buf.WriteString(pad + s + "\n")
		return
	}
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			buf.WriteString(pad + "(none)\n")
			return
		}
		for _, it := range t {
			if s, ok := scalar(it); ok {
				buf.WriteString(pad + "- " + s + "\n")
				continue
			}
			buf.WriteString(pad + "-\n")
			writeTextAny(buf, it, level+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := scalar(t[k]); ok {
				buf.WriteString(pad + k + ": " + s + "\n")
				continue
			}
			buf.WriteString(pad + k + ":\n")
			writeTextAny(buf, t[k], level+1)
		}
	default:
		buf.WriteString(pad + fmt.Sprintf("%v", v) + "\n")
	}
}
