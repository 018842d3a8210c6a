package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPattern reports a malformed pattern string.
var ErrInvalidPattern = errors.New("invalid pattern")

// DefaultPattern is used when neither the config nor the command line sets one.
const DefaultPattern = "%d{ISO8601} | %-5.5p | %-32.32c{1} | %m"

// Pattern is a compiled render pattern: an immutable chain of converters.
type Pattern struct {
	source string
	head   *converter
	colors Colors
}

// Compile parses pattern into a reusable Pattern.
func Compile(pattern string) (*Pattern, error) {
	p := &parser{src: pattern}
	head, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Pattern{source: pattern, head: head, colors: DefaultColors()}, nil
}

// MustCompile is like Compile but panics on error. Intended for constants.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// WithColors returns a copy of p that colors lines with c.
func (p *Pattern) WithColors(c Colors) *Pattern {
	clone := *p
	clone.colors = c.clone()
	return &clone
}

type parser struct {
	src  string
	pos  int
	head *converter
	tail *converter
}

func (p *parser) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrInvalidPattern, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *parser) append(c *converter) {
	if p.tail == nil {
		p.head = c
	} else {
		p.tail.next = c
	}
	p.tail = c
}

func (p *parser) parse() (*converter, error) {
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			p.append(literalConverter(literal.String()))
			literal.Reset()
		}
	}

	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch != '%' {
			literal.WriteByte(ch)
			p.pos++
			continue
		}
		p.pos++
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated placeholder")
		}
		if p.src[p.pos] == '%' {
			literal.WriteByte('%')
			p.pos++
			continue
		}

		flush()
		mod, err := p.parseModifier()
		if err != nil {
			return nil, err
		}
		word := p.parseWord()
		if word == "" {
			return nil, p.fail("missing conversion word")
		}
		option, hasOption, err := p.parseOption()
		if err != nil {
			return nil, err
		}
		c, err := p.build(word, option, hasOption)
		if err != nil {
			return nil, err
		}
		c.mod = mod
		p.append(c)
	}
	flush()
	return p.head, nil
}

func (p *parser) parseModifier() (modifier, error) {
	var mod modifier
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		mod.leftAlign = true
		p.pos++
	}
	var err error
	if mod.min, err = p.parseInt(); err != nil {
		return modifier{}, err
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		start := p.pos
		if mod.max, err = p.parseInt(); err != nil {
			return modifier{}, err
		}
		if p.pos == start {
			return modifier{}, p.fail("missing maximum width after '.'")
		}
	}
	return mod, nil
}

func (p *parser) parseInt() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, nil
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, p.fail("width %s out of range", p.src[start:p.pos])
	}
	return n, nil
}

func (p *parser) parseWord() string {
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) parseOption() (string, bool, error) {
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return "", false, nil
	}
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return "", false, p.fail("unterminated option")
	}
	option := p.src[p.pos+1 : p.pos+end]
	p.pos += end + 1
	return option, true, nil
}

func (p *parser) build(word, option string, hasOption bool) (*converter, error) {
	switch word {
	case "d", "date":
		layout := option
		if !hasOption || strings.TrimSpace(layout) == "" {
			layout = "ISO8601"
		}
		df, err := compileDate(layout)
		if err != nil {
			return nil, p.fail("%v", err)
		}
		return dateConverter(df), nil
	case "p", "level":
		return levelConverter(), nil
	case "c", "logger":
		precision := 0
		if hasOption {
			n, err := strconv.Atoi(strings.TrimSpace(option))
			if err != nil || n < 0 {
				return nil, p.fail("invalid logger precision %q", option)
			}
			precision = n
		}
		return loggerConverter(precision), nil
	case "m", "msg", "message":
		return messageConverter(), nil
	case "X", "property", "mdc":
		return propertyConverter(option), nil
	case "n":
		return literalConverter("\n"), nil
	default:
		return nil, p.fail("unknown conversion %q", word)
	}
}
