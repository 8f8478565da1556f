package manifest

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates Value variants.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindList
	KindObject
)

// Field is one ordered key/value pair of an object Value.
type Field struct {
	Key   string
	Value Value
}

// Value is a tagged variant produced by converting XML into nested data:
// null, text, list of values, or an ordered object.
type Value struct {
	kind   Kind
	text   string
	list   []Value
	fields []Field
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// List wraps a sequence of values.
func List(values ...Value) Value { return Value{kind: KindList, list: values} }

// Object wraps ordered fields. Later duplicate keys are not merged here; use
// objectBuilder for xmltodict-style collapsing.
func Object(fields ...Field) Value { return Value{kind: KindObject, fields: fields} }

func (v Value) Kind() Kind { return v.kind }

// Text returns the string for text values and "" otherwise.
func (v Value) Text() string { return v.text }

// Items returns the list elements, or nil.
func (v Value) Items() []Value { return v.list }

// Fields returns object fields in insertion order, or nil.
func (v Value) Fields() []Field { return v.fields }

// Get looks up an object field by key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Path follows nested object keys, e.g. Path("title", "#text").
func (v Value) Path(keys ...string) (Value, bool) {
	current := v
	for _, key := range keys {
		next, ok := current.Get(key)
		if !ok {
			return Value{}, false
		}
		current = next
	}
	return current, true
}

// Equal reports deep equality including field order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == other.text
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
	case KindObject:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != other.fields[i].Key || !v.fields[i].Value.Equal(other.fields[i].Value) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON keeps object field order, which a Go map would lose.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindText:
		encoded, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}

// objectBuilder accumulates fields, collapsing repeated keys into a list in
// the position of the first occurrence.
type objectBuilder struct {
	fields []Field
	index  map[string]int
	multi  map[string]bool
}

func (b *objectBuilder) add(key string, value Value) {
	if b.index == nil {
		b.index = make(map[string]int)
		b.multi = make(map[string]bool)
	}
	pos, ok := b.index[key]
	if !ok {
		b.index[key] = len(b.fields)
		b.fields = append(b.fields, Field{Key: key, Value: value})
		return
	}
	existing := b.fields[pos].Value
	if !b.multi[key] {
		existing = List(existing)
		b.multi[key] = true
	}
	existing.list = append(existing.list, value)
	b.fields[pos].Value = existing
}

func (b *objectBuilder) empty() bool { return len(b.fields) == 0 }

func (b *objectBuilder) value() Value { return Object(b.fields...) }
