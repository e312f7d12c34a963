package step

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ============================================================
// Encoder
// ============================================================

type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode пишет заголовок и все экземпляры по возрастанию id.
func (e *Encoder) Encode(f *File) error {
	bw := bufio.NewWriter(e.w)
	h := f.Header
	desc := h.Description
	if len(desc) == 0 {
		desc = []string{"ViewDefinition [CoordinationView]"}
	}
	fmt.Fprintln(bw, "ISO-10303-21;")
	fmt.Fprintln(bw, "HEADER;")
	fmt.Fprintf(bw, "FILE_DESCRIPTION(%s,'2;1');\n", stringList(desc))
	fmt.Fprintf(bw, "FILE_NAME(%s,%s,%s,%s,%s,%s,'');\n",
		EncodeString(h.Name), EncodeString(h.TimeStamp), stringList(h.Author), stringList(h.Org),
		EncodeString("archifc"), EncodeString("archifc"))
	fmt.Fprintf(bw, "FILE_SCHEMA(%s);\n", stringList(h.Schemas))
	fmt.Fprintln(bw, "ENDSEC;")
	fmt.Fprintln(bw, "DATA;")

	ids := make([]int, 0, len(f.Instances))
	for id := range f.Instances {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		bw.WriteString(FormatInstance(f.Instances[id]))
		bw.WriteByte('\n')
	}
	fmt.Fprintln(bw, "ENDSEC;")
	fmt.Fprintln(bw, "END-ISO-10303-21;")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("step: write: %w", err)
	}
	return nil
}

func stringList(ss []string) string {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...).String()
}

// FormatInstance формирует одну строку `#id=TYPE(...);`.
func FormatInstance(in *Instance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d=", in.ID)
	if in.Type == "" {
		b.WriteByte('(')
		for _, p := range in.Parts {
			b.WriteString(p.Type)
			writeArgs(&b, p.Args)
		}
		b.WriteByte(')')
	} else {
		b.WriteString(in.Type)
		writeArgs(&b, in.Args)
	}
	b.WriteByte(';')
	return b.String()
}

func writeArgs(b *strings.Builder, args []Value) {
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		writeValue(b, a)
	}
	b.WriteByte(')')
}

func writeValue(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteByte('$')
	case KindDerived:
		b.WriteByte('*')
	case KindRef:
		fmt.Fprintf(b, "#%d", v.Ref)
	case KindString:
		b.WriteString(EncodeString(v.Str))
	case KindInteger:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindReal:
		b.WriteString(FormatReal(v.Real))
	case KindEnum:
		b.WriteString("." + v.Str + ".")
	case KindBinary:
		b.WriteString(`"` + v.Str + `"`)
	case KindList:
		writeArgs(b, v.List)
	case KindTyped:
		b.WriteString(v.Str)
		writeArgs(b, v.List)
	}
}

// FormatReal всегда пишет десятичную точку, как требуется для REAL.
func FormatReal(f float64) string {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return "0."
	}
	abs := math.Abs(f)
	if abs >= 1e-4 && abs < 1e15 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += "."
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	return mant + "E" + exp
}

// EncodeString берет s в кавычки, экранирует кавычки и обратные слеши,
// не-ASCII участки пишет директивами \X2\.
func EncodeString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	var run []rune
	flush := func() {
		if len(run) == 0 {
			return
		}
		b.WriteString(`\X2\`)
		for _, u := range utf16.Encode(run) {
			fmt.Fprintf(&b, "%04X", u)
		}
		b.WriteString(`\X0\`)
		run = run[:0]
	}
	for _, r := range s {
		if r > 126 || r < 32 {
			run = append(run, r)
			continue
		}
		flush()
		switch r {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	flush()
	b.WriteByte('\'')
	return b.String()
}
