package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"github.com/five82/vmlog/internal/logevent"
)

// Colors maps a level to the SGR parameters wrapped around its line.
// A missing or empty entry leaves the level uncolored.
type Colors map[logevent.Level]string

// DefaultColors returns the stock palette.
func DefaultColors() Colors {
	return Colors{
		logevent.LevelFatal: "31",
		logevent.LevelError: "31",
		logevent.LevelWarn:  "35",
		logevent.LevelInfo:  "36",
		logevent.LevelDebug: "39",
		logevent.LevelTrace: "39",
	}
}

func (c Colors) clone() Colors {
	out := make(Colors, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

var rawSGR = regexp.MustCompile(`^[0-9]+(;[0-9]+)*$`)

var ansiNames = map[string]int{
	"black": 0, "red": 1, "green": 2, "yellow": 3,
	"blue": 4, "magenta": 5, "cyan": 6, "white": 7,
	"brightblack": 8, "brightred": 9, "brightgreen": 10, "brightyellow": 11,
	"brightblue": 12, "brightmagenta": 13, "brightcyan": 14, "brightwhite": 15,
}

// ParseColors builds a palette from level-name keys, starting from the
// defaults. Values may be raw SGR parameters, ANSI color names or #rrggbb.
func ParseColors(values map[string]string) (Colors, error) {
	colors := DefaultColors()
	for name, value := range values {
		level, ok := logevent.ParseLevel(name)
		if !ok {
			return nil, fmt.Errorf("colors: unknown level %q", name)
		}
		seq, err := ResolveColor(value)
		if err != nil {
			return nil, fmt.Errorf("colors: %s: %w", strings.ToLower(level.String()), err)
		}
		colors[level] = seq
	}
	return colors, nil
}

// ResolveColor converts one configured color value into SGR parameters.
func ResolveColor(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch {
	case v == "":
		return "", nil
	case rawSGR.MatchString(v):
		return v, nil
	case strings.HasPrefix(v, "#"):
		color := termenv.TrueColor.Color(v)
		if color == nil || color.Sequence(false) == "" {
			return "", fmt.Errorf("invalid hex color %q", value)
		}
		return color.Sequence(false), nil
	}
	if idx, ok := ansiNames[v]; ok {
		return termenv.ANSI.Color(strconv.Itoa(idx)).Sequence(false), nil
	}
	return "", fmt.Errorf("unknown color %q", value)
}
