// Package nbt reads and writes named binary tag documents, the tree format
// stored inside region chunk payloads.
package nbt

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindEnd Kind = iota
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindByteArray
	KindString
	KindList
	KindCompound
	KindIntArray
	KindLongArray
)

var kindNames = [...]string{
	KindEnd:       "TAG_End",
	KindByte:      "TAG_Byte",
	KindShort:     "TAG_Short",
	KindInt:       "TAG_Int",
	KindLong:      "TAG_Long",
	KindFloat:     "TAG_Float",
	KindDouble:    "TAG_Double",
	KindByteArray: "TAG_Byte_Array",
	KindString:    "TAG_String",
	KindList:      "TAG_List",
	KindCompound:  "TAG_Compound",
	KindIntArray:  "TAG_Int_Array",
	KindLongArray: "TAG_Long_Array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TAG_Unknown(%d)", uint8(k))
}

func (k Kind) valid() bool {
	return k <= KindLongArray
}

// Tag is one node of a document. Value holds, by Kind:
//
//	Byte int8, Short int16, Int int32, Long int64, Float float32,
//	Double float64, ByteArray []byte, String string, List *List,
//	Compound []*Tag, IntArray []int32, LongArray []int64.
//
// Tags inside a List have empty names.
type Tag struct {
	Kind  Kind
	Name  string
	Value any
}

// List is a homogeneous sequence of unnamed tags.
type List struct {
	Elem  Kind
	Items []*Tag
}

func Byte(name string, v int8) *Tag      { return &Tag{Kind: KindByte, Name: name, Value: v} }
func Short(name string, v int16) *Tag    { return &Tag{Kind: KindShort, Name: name, Value: v} }
func Int(name string, v int32) *Tag      { return &Tag{Kind: KindInt, Name: name, Value: v} }
func Long(name string, v int64) *Tag     { return &Tag{Kind: KindLong, Name: name, Value: v} }
func Float(name string, v float32) *Tag  { return &Tag{Kind: KindFloat, Name: name, Value: v} }
func Double(name string, v float64) *Tag { return &Tag{Kind: KindDouble, Name: name, Value: v} }
func String(name string, v string) *Tag  { return &Tag{Kind: KindString, Name: name, Value: v} }
func ByteArray(name string, v []byte) *Tag {
	return &Tag{Kind: KindByteArray, Name: name, Value: v}
}
func IntArray(name string, v []int32) *Tag {
	return &Tag{Kind: KindIntArray, Name: name, Value: v}
}
func LongArray(name string, v []int64) *Tag {
	return &Tag{Kind: KindLongArray, Name: name, Value: v}
}

// Compound builds a compound tag. Child order is preserved on write.
func Compound(name string, children ...*Tag) *Tag {
	return &Tag{Kind: KindCompound, Name: name, Value: children}
}

// NewList builds a list tag of elem-kind items. Item names are cleared.
func NewList(name string, elem Kind, items ...*Tag) *Tag {
	for _, it := range items {
		it.Name = ""
	}
	return &Tag{Kind: KindList, Name: name, Value: &List{Elem: elem, Items: items}}
}

// Children returns the entries of a compound, or nil for other kinds.
func (t *Tag) Children() []*Tag {
	c, _ := t.Value.([]*Tag)
	return c
}

// Items returns the elements of a list, or nil for other kinds.
func (t *Tag) Items() []*Tag {
	l, ok := t.Value.(*List)
	if !ok || l == nil {
		return nil
	}
	return l.Items
}

// Get returns the named child of a compound.
func (t *Tag) Get(name string) *Tag {
	for _, c := range t.Children() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path walks nested compounds, e.g. Path("Level", "xPos").
func (t *Tag) Path(names ...string) *Tag {
	cur := t
	for _, n := range names {
		if cur == nil {
			return nil
		}
		cur = cur.Get(n)
	}
	return cur
}

// Int64 widens any integral scalar.
func (t *Tag) Int64() (int64, bool) {
	switch v := t.Value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// Text returns the value of a string tag.
func (t *Tag) Text() (string, bool) {
	s, ok := t.Value.(string)
	return s, ok
}

func (t *Tag) String() string {
	var sb strings.Builder
	t.format(&sb, 0)
	return sb.String()
}

func (t *Tag) format(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s('%s'): ", indent, t.Kind, t.Name)
	switch t.Kind {
	case KindCompound:
		children := t.Children()
		fmt.Fprintf(sb, "%d entries\n%s{\n", len(children), indent)
		for _, c := range children {
			c.format(sb, depth+1)
		}
		sb.WriteString(indent + "}\n")
	case KindList:
		items := t.Items()
		elem := KindEnd
		if l, ok := t.Value.(*List); ok && l != nil {
			elem = l.Elem
		}
		fmt.Fprintf(sb, "%d entries of %s\n%s{\n", len(items), elem, indent)
		for _, it := range items {
			it.format(sb, depth+1)
		}
		sb.WriteString(indent + "}\n")
	case KindByteArray:
		b, _ := t.Value.([]byte)
		fmt.Fprintf(sb, "[%d bytes]\n", len(b))
	case KindIntArray:
		a, _ := t.Value.([]int32)
		fmt.Fprintf(sb, "[%d ints]\n", len(a))
	case KindLongArray:
		a, _ := t.Value.([]int64)
		fmt.Fprintf(sb, "[%d longs]\n", len(a))
	case KindString:
		fmt.Fprintf(sb, "%q\n", t.Value)
	default:
		fmt.Fprintf(sb, "%v\n", t.Value)
	}
}
