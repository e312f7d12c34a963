package step

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ============================================================
// Parser
// ============================================================

var (
	ErrSyntax      = errors.New("step: syntax error")
	ErrDuplicateID = errors.New("step: duplicate instance id")
)

type parser struct {
	data []byte
	pos  int
	line int
}

// Parse читает полную структуру обмена ISO 10303-21.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("step: read: %w", err)
	}
	p := &parser{data: data, line: 1}
	return p.file()
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.line, fmt.Sprintf(format, args...))
}

func (p *parser) file() (*File, error) {
	f := &File{Instances: make(map[int]*Instance)}
	if err := p.expectKeyword("ISO-10303-21"); err != nil {
		return nil, err
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	for {
		kw, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		switch kw {
		case "HEADER":
			if err := p.header(&f.Header); err != nil {
				return nil, err
			}
		case "DATA":
			if err := p.dataSection(f); err != nil {
				return nil, err
			}
		case "END-ISO-10303-21":
			return f, nil
		default:
			return nil, p.errorf("unexpected section %q", kw)
		}
	}
}

func (p *parser) header(h *Header) error {
	for {
		kw, err := p.keyword()
		if err != nil {
			return err
		}
		if kw == "ENDSEC" {
			return p.expect(';')
		}
		args, err := p.arguments()
		if err != nil {
			return err
		}
		if err := p.expect(';'); err != nil {
			return err
		}
		arg := func(i int) Value {
			if i < len(args) {
				return args[i]
			}
			return Null
		}
		switch kw {
		case "FILE_DESCRIPTION":
			h.Description = stringsOf(arg(0))
		case "FILE_NAME":
			h.Name, _ = arg(0).AsString()
			h.TimeStamp, _ = arg(1).AsString()
			h.Author = stringsOf(arg(2))
			h.Org = stringsOf(arg(3))
		case "FILE_SCHEMA":
			h.Schemas = stringsOf(arg(0))
		}
	}
}

func stringsOf(v Value) []string {
	list, _ := v.AsList()
	var out []string
	for _, item := range list {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) dataSection(f *File) error {
	for {
		p.skip()
		if p.peek() != '#' {
			kw, err := p.keyword()
			if err != nil {
				return err
			}
			if kw != "ENDSEC" {
				return p.errorf("expected ENDSEC, got %q", kw)
			}
			return p.expect(';')
		}
		in, err := p.instance()
		if err != nil {
			return err
		}
		if _, dup := f.Instances[in.ID]; dup {
			return fmt.Errorf("%w: #%d (line %d)", ErrDuplicateID, in.ID, p.line)
		}
		f.Instances[in.ID] = in
		f.Order = append(f.Order, in.ID)
	}
}

func (p *parser) instance() (*Instance, error) {
	id, err := p.ref()
	if err != nil {
		return nil, err
	}
	if err := p.expect('='); err != nil {
		return nil, err
	}
	in := &Instance{ID: id}
	p.skip()
	if p.peek() == '(' {
		p.pos++
		for {
			p.skip()
			if p.peek() == ')' {
				p.pos++
				break
			}
			kw, err := p.keyword()
			if err != nil {
				return nil, err
			}
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			in.Parts = append(in.Parts, Part{Type: kw, Args: args})
		}
	} else {
		kw, err := p.keyword()
		if err != nil {
			return nil, err
		}
		in.Type = kw
		if in.Args, err = p.arguments(); err != nil {
			return nil, err
		}
	}
	return in, p.expect(';')
}

func (p *parser) arguments() ([]Value, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []Value
	p.skip()
	if p.peek() == ')' {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skip()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')', got %q", p.peek())
		}
	}
}

func (p *parser) value() (Value, error) {
	p.skip()
	c := p.peek()
	switch {
	case c == '$':
		p.pos++
		return Null, nil
	case c == '*':
		p.pos++
		return Value{Kind: KindDerived}, nil
	case c == '#':
		id, err := p.ref()
		return Ref(id), err
	case c == '\'':
		s, err := p.str()
		return String(s), err
	case c == '"':
		return p.binary()
	case c == '.':
		return p.enum()
	case c == '(':
		list, err := p.arguments()
		return List(list...), err
	case c == '-' || c == '+' || isDigit(c):
		return p.number()
	case isAlpha(c):
		kw, err := p.keyword()
		if err != nil {
			return Null, err
		}
		args, err := p.arguments()
		if err != nil {
			return Null, err
		}
		if len(args) != 1 {
			return Null, p.errorf("typed value %s needs one argument", kw)
		}
		return Typed(kw, args[0]), nil
	case c == 0:
		return Null, p.errorf("unexpected end of input")
	}
	return Null, p.errorf("unexpected character %q", c)
}

func (p *parser) peek() byte {
	if p.pos >= len(p.data) {
		return 0
	}
	return p.data[p.pos]
}

// skip пропускает пробелы и комментарии /* */.
func (p *parser) skip() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '*':
			end := strings.Index(string(p.data[p.pos+2:]), "*/")
			if end < 0 {
				p.pos = len(p.data)
				return
			}
			p.line += strings.Count(string(p.data[p.pos:p.pos+2+end]), "\n")
			p.pos += end + 4
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	p.skip()
	if p.peek() != c {
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.pos++
	return nil
}

func (p *parser) expectKeyword(kw string) error {
	got, err := p.keyword()
	if err != nil {
		return err
	}
	if got != kw {
		return p.errorf("expected %s, got %s", kw, got)
	}
	return nil
}

func isAlpha(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// keyword читает идентификатор в верхнем регистре. Дефисы допускаются,
// чтобы маркеры ISO-10303-21 читались как ключевые слова.
func (p *parser) keyword() (string, error) {
	p.skip()
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isAlpha(c) || isDigit(c) || (c == '-' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errorf("expected keyword, got %q", p.peek())
	}
	return strings.ToUpper(string(p.data[start:p.pos])), nil
}

func (p *parser) ref() (int, error) {
	if err := p.expect('#'); err != nil {
		return 0, err
	}
	start := p.pos
	for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
		p.pos++
	}
	id, err := strconv.Atoi(string(p.data[start:p.pos]))
	if err != nil {
		return 0, p.errorf("bad instance reference")
	}
	return id, nil
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isReal := false
scan:
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case isDigit(c):
		case c == '.' || c == 'E' || c == 'e':
			isReal = true
		case (c == '-' || c == '+') && (p.data[p.pos-1] == 'E' || p.data[p.pos-1] == 'e'):
		default:
			break scan
		}
		p.pos++
	}
	text := string(p.data[start:p.pos])
	if isReal {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null, p.errorf("bad real %q", text)
		}
		return Real(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Null, p.errorf("bad integer %q", text)
	}
	return Integer(i), nil
}

func (p *parser) enum() (Value, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] != '.' {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return Null, p.errorf("unterminated enumeration")
	}
	name := string(p.data[start:p.pos])
	p.pos++
	return Enum(name), nil
}

func (p *parser) binary() (Value, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] != '"' {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return Null, p.errorf("unterminated binary")
	}
	v := Value{Kind: KindBinary, Str: string(p.data[start:p.pos])}
	p.pos++
	return v, nil
}

func (p *parser) str() (string, error) {
	p.pos++
	var raw []byte
	for {
		if p.pos >= len(p.data) {
			return "", p.errorf("unterminated string")
		}
		c := p.data[p.pos]
		p.pos++
		if c == '\'' {
			if p.peek() == '\'' {
				raw = append(raw, '\'')
				p.pos++
				continue
			}
			break
		}
		if c == '\n' {
			p.line++
			continue
		}
		raw = append(raw, c)
	}
	return decodeEscapes(raw)
}

// decodeEscapes разбирает директивы \S\, \X\, \X2\ и \X4\.
// Байты вне директив читаются через DecodeText.
func decodeEscapes(raw []byte) (string, error) {
	if !strings.Contains(string(raw), `\`) {
		return DecodeText(raw), nil
	}
	var b strings.Builder
	s := string(raw)
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			j := strings.IndexByte(s[i:], '\\')
			if j < 0 {
				j = len(s) - i
			}
			b.WriteString(DecodeText([]byte(s[i : i+j])))
			i += j
			continue
		}
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, `\\`):
			b.WriteByte('\\')
			i += 2
		case strings.HasPrefix(rest, `\S\`) && len(rest) >= 4:
			b.WriteRune(rune(rest[3]) + 128)
			i += 4
		case strings.HasPrefix(rest, `\X2\`), strings.HasPrefix(rest, `\X4\`):
			width := 4
			if rest[2] == '4' {
				width = 8
			}
			end := strings.Index(rest[4:], `\X0\`)
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated %s directive", ErrSyntax, rest[:4])
			}
			hex := rest[4 : 4+end]
			if len(hex)%width != 0 {
				return "", fmt.Errorf("%w: bad %s directive", ErrSyntax, rest[:4])
			}
			var units []uint16
			for k := 0; k < len(hex); k += width {
				n, err := strconv.ParseUint(hex[k:k+width], 16, 32)
				if err != nil {
					return "", fmt.Errorf("%w: bad hex %q", ErrSyntax, hex[k:k+width])
				}
				if width == 8 {
					b.WriteRune(rune(n))
				} else {
					units = append(units, uint16(n))
				}
			}
			b.WriteString(string(utf16.Decode(units)))
			i += 4 + end + 4
		case strings.HasPrefix(rest, `\X\`) && len(rest) >= 5:
			n, err := strconv.ParseUint(rest[3:5], 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: bad hex %q", ErrSyntax, rest[3:5])
			}
			b.WriteRune(rune(n))
			i += 5
		case strings.HasPrefix(rest, `\P`) && len(rest) >= 4 && rest[3] == '\\':
			// смена кодовой страницы, сам алфавит не отслеживается
			i += 4
		default:
			b.WriteByte('\\')
			i++
		}
	}
	return b.String(), nil
}

// DecodeText читает байты как UTF-8, иначе как Latin-1.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
