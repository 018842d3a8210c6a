package pattern

import (
	"fmt"
	"strings"
	"time"
)

var namedDateLayouts = map[string]string{
	"ISO8601":  "yyyy-MM-dd HH:mm:ss,SSS",
	"ABSOLUTE": "HH:mm:ss,SSS",
	"DATE":     "dd MMM yyyy HH:mm:ss,SSS",
}

// dateFormat is a compiled Java-style date layout.
type dateFormat []func(t time.Time) string

func (df dateFormat) format(t time.Time) string {
	var sb strings.Builder
	for _, part := range df {
		sb.WriteString(part(t))
	}
	return sb.String()
}

func goLayout(layout string) func(time.Time) string {
	return func(t time.Time) string { return t.Format(layout) }
}

func literal(s string) func(time.Time) string {
	return func(time.Time) string { return s }
}

// compileDate translates the SimpleDateFormat subset used by log4j layouts.
func compileDate(layout string) (dateFormat, error) {
	if named, ok := namedDateLayouts[strings.ToUpper(strings.TrimSpace(layout))]; ok {
		layout = named
	}

	var df dateFormat
	for i := 0; i < len(layout); {
		ch := layout[i]
		if ch == '\'' {
			end := strings.IndexByte(layout[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in date layout %q", layout)
			}
			text := layout[i+1 : i+1+end]
			if text == "" {
				text = "'"
			}
			df = append(df, literal(text))
			i += end + 2
			continue
		}
		if !isASCIILetter(ch) {
			df = append(df, literal(string(ch)))
			i++
			continue
		}

		run := 1
		for i+run < len(layout) && layout[i+run] == ch {
			run++
		}
		part, err := dateField(ch, run)
		if err != nil {
			return nil, err
		}
		df = append(df, part)
		i += run
	}
	return df, nil
}

func dateField(ch byte, run int) (func(time.Time) string, error) {
	switch ch {
	case 'y':
		if run == 2 {
			return goLayout("06"), nil
		}
		return goLayout("2006"), nil
	case 'M':
		switch {
		case run >= 4:
			return goLayout("January"), nil
		case run == 3:
			return goLayout("Jan"), nil
		case run == 2:
			return goLayout("01"), nil
		default:
			return goLayout("1"), nil
		}
	case 'd':
		if run >= 2 {
			return goLayout("02"), nil
		}
		return goLayout("2"), nil
	case 'E':
		if run >= 4 {
			return goLayout("Monday"), nil
		}
		return goLayout("Mon"), nil
	case 'H':
		if run >= 2 {
			return goLayout("15"), nil
		}
		return func(t time.Time) string { return fmt.Sprintf("%d", t.Hour()) }, nil
	case 'h':
		if run >= 2 {
			return goLayout("03"), nil
		}
		return goLayout("3"), nil
	case 'm':
		if run >= 2 {
			return goLayout("04"), nil
		}
		return goLayout("4"), nil
	case 's':
		if run >= 2 {
			return goLayout("05"), nil
		}
		return goLayout("5"), nil
	case 'S':
		return func(t time.Time) string {
			return fmt.Sprintf("%0*d", run, t.Nanosecond()/int(time.Millisecond))
		}, nil
	case 'a':
		return goLayout("PM"), nil
	case 'z':
		return goLayout("MST"), nil
	case 'Z':
		return goLayout("-0700"), nil
	case 'X':
		if run >= 3 {
			return goLayout("Z07:00"), nil
		}
		return goLayout("Z0700"), nil
	default:
		return nil, fmt.Errorf("unsupported date field %q", strings.Repeat(string(ch), run))
	}
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
