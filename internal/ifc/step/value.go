package step

import (
	"fmt"
	"strings"
)

// ============================================================
// Values
// ============================================================

type Kind int

const (
	KindNull Kind = iota
	KindDerived
	KindRef
	KindString
	KindInteger
	KindReal
	KindEnum
	KindBinary
	KindList
	KindTyped
)

// Value - один атрибут экземпляра STEP. Типизированные значения вроде
// IFCLABEL('x') хранят имя типа в Str, а содержимое в List[0].
type Value struct {
	Kind Kind
	Ref  int
	Str  string
	Int  int64
	Real float64
	List []Value
}

var (
	Null    = Value{Kind: KindNull}
	Derived = Value{Kind: KindDerived}
)

func Ref(id int) Value              { return Value{Kind: KindRef, Ref: id} }
func String(s string) Value         { return Value{Kind: KindString, Str: s} }
func Integer(i int64) Value         { return Value{Kind: KindInteger, Int: i} }
func Real(f float64) Value          { return Value{Kind: KindReal, Real: f} }
func Enum(s string) Value           { return Value{Kind: KindEnum, Str: strings.ToUpper(s)} }
func List(vs ...Value) Value        { return Value{Kind: KindList, List: vs} }
func Typed(t string, v Value) Value { return Value{Kind: KindTyped, Str: strings.ToUpper(t), List: []Value{v}} }

func Bool(b bool) Value {
	if b {
		return Enum("T")
	}
	return Enum("F")
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull || v.Kind == KindDerived
}

// unwrap снимает обертки типизированных значений.
func (v Value) unwrap() Value {
	for v.Kind == KindTyped && len(v.List) == 1 {
		v = v.List[0]
	}
	return v
}

func (v Value) AsFloat() (float64, bool) {
	v = v.unwrap()
	switch v.Kind {
	case KindReal:
		return v.Real, true
	case KindInteger:
		return float64(v.Int), true
	}
	return 0, false
}

func (v Value) AsInt() (int64, bool) {
	v = v.unwrap()
	switch v.Kind {
	case KindInteger:
		return v.Int, true
	case KindReal:
		return int64(v.Real), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	v = v.unwrap()
	switch v.Kind {
	case KindString, KindEnum:
		return v.Str, true
	}
	return "", false
}

func (v Value) AsRef() (int, bool) {
	v = v.unwrap()
	if v.Kind == KindRef {
		return v.Ref, true
	}
	return 0, false
}

func (v Value) AsList() ([]Value, bool) {
	v = v.unwrap()
	if v.Kind == KindList {
		return v.List, true
	}
	return nil, false
}

// AsBool читает перечисления .T./.F.; для .U. ok = false.
func (v Value) AsBool() (bool, bool) {
	v = v.unwrap()
	if v.Kind != KindEnum {
		return false, false
	}
	switch v.Str {
	case "T", "TRUE":
		return true, true
	case "F", "FALSE":
		return false, true
	}
	return false, false
}

// Refs возвращает все ссылки значения-списка по порядку.
func (v Value) Refs() []int {
	list, ok := v.AsList()
	if !ok {
		if id, ok := v.AsRef(); ok {
			return []int{id}
		}
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		if id, ok := item.AsRef(); ok {
			out = append(out, id)
		}
	}
	return out
}

// Floats возвращает все числовые элементы значения-списка по порядку.
func (v Value) Floats() []float64 {
	list, _ := v.AsList()
	out := make([]float64, 0, len(list))
	for _, item := range list {
		if f, ok := item.AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

func (v Value) String() string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

// Instance - одна запись `#id=TYPE(...)`. У сложных экземпляров Type
// пустой, а части лежат в Parts.
type Instance struct {
	ID    int
	Type  string
	Args  []Value
	Parts []Part
}

// Part - одна сущность сложного экземпляра.
type Part struct {
	Type string
	Args []Value
}

func (in *Instance) Arg(i int) Value {
	if in == nil || i < 0 || i >= len(in.Args) {
		return Null
	}
	return in.Args[i]
}

func (in *Instance) String() string {
	return fmt.Sprintf("#%d=%s", in.ID, in.Type)
}

// Header хранит сырые записи секции HEADER.
type Header struct {
	Description []string
	Name        string
	TimeStamp   string
	Author      []string
	Org         []string
	Schemas     []string
}

// File - разобранная структура обмена.
type File struct {
	Header    Header
	Instances map[int]*Instance
	Order     []int
}

func (f *File) Get(id int) (*Instance, bool) {
	in, ok := f.Instances[id]
	return in, ok
}

// ByType возвращает экземпляры, тип которых совпадает с одним из имен
// в верхнем регистре, в порядке файла.
func (f *File) ByType(types ...string) []*Instance {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[strings.ToUpper(t)] = true
	}
	var out []*Instance
	for _, id := range f.Order {
		in := f.Instances[id]
		if want[in.Type] {
			out = append(out, in)
		}
	}
	return out
}

// Schema возвращает первый идентификатор FILE_SCHEMA или "".
func (f *File) Schema() string {
	if len(f.Header.Schemas) == 0 {
		return ""
	}
	return f.Header.Schemas[0]
}
