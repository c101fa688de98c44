package csr

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// Access is the CPU access mode of a field.
type Access string

const (
	AccessUnset     Access = ""
	AccessWriteOnly Access = "write-only"
	AccessReadOnly  Access = "read-only"
	AccessReadWrite Access = "read-write"
)

// FieldValue labels one enumerated value of a field.
type FieldValue struct {
	Value       uint64
	Name        string
	Description string
}

// Field is a named bit range of a register.
type Field struct {
	Name string
	Size int
	// Offset is the position of the field's least-significant bit. Nil
	// places the field right after the previous one.
	Offset      *int
	Reset       *big.Int
	Access      Access
	Pulse       bool
	Description string
	Values      []FieldValue

	// Signal carries the field value in the generated logic. It is created
	// by BuildFields.
	Signal *hdl.Signal
}

// At returns an explicit field offset.
func At(offset int) *int { return &offset }

// Lo is the first bit of a laid-out field.
func (f *Field) Lo() int {
	if f.Offset == nil {
		return 0
	}
	return *f.Offset
}

// Hi is one past the last bit of a laid-out field.
func (f *Field) Hi() int { return f.Lo() + f.Size }

// ResetValue returns the field reset value, zero when unset.
func (f *Field) ResetValue() *big.Int {
	if f.Reset == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(f.Reset)
}

// FieldAggregate is the validated, laid-out field list of one register.
type FieldAggregate struct {
	fields []*Field
	byName map[string]*Field
}

// BuildFields validates fields and lays them out in declared order.
// Fields without an access mode inherit defaultAccess. The input slice is
// copied; the caller's fields are left untouched.
func BuildFields(fields []Field, defaultAccess Access) (*FieldAggregate, error) {
	if len(fields) == 0 {
		return nil, &ConfigurationError{Reason: "field list is empty"}
	}
	if defaultAccess != AccessReadOnly && defaultAccess != AccessReadWrite {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("default access %q must be read-only or read-write", defaultAccess)}
	}

	agg := &FieldAggregate{
		fields: make([]*Field, 0, len(fields)),
		byName: make(map[string]*Field, len(fields)),
	}

	for i := range fields {
		f := fields[i]
		if err := checkFieldName(f.Name); err != nil {
			return nil, err
		}
		if _, ok := agg.byName[f.Name]; ok {
			return nil, &NameCollisionError{Field: f.Name, Name: f.Name}
		}
		if f.Size < 1 {
			return nil, &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("size %d must be at least 1", f.Size)}
		}
		if f.Pulse && f.Size != 1 {
			return nil, &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("pulse fields must be 1 bit wide, got %d", f.Size)}
		}
		if f.Reset != nil && (f.Reset.Sign() < 0 || f.Reset.BitLen() > f.Size) {
			return nil, &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("reset %s does not fit in %d bits", f.Reset, f.Size)}
		}
		for _, v := range f.Values {
			if f.Size < 64 && v.Value>>uint(f.Size) != 0 {
				return nil, &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("value %d (%s) does not fit in %d bits", v.Value, v.Name, f.Size)}
			}
		}
		f.Reset = f.ResetValue()
		f.Values = append([]FieldValue(nil), f.Values...)
		agg.byName[f.Name] = &f
		agg.fields = append(agg.fields, &f)
	}

	cursor := 0
	for _, f := range agg.fields {
		if f.Offset != nil {
			if *f.Offset < cursor {
				return nil, &LayoutOverlapError{Field: f.Name, Offset: *f.Offset, Cursor: cursor}
			}
			f.Offset = At(*f.Offset)
		} else {
			f.Offset = At(cursor)
		}
		cursor = f.Hi()
	}

	for _, f := range agg.fields {
		switch {
		case f.Access == AccessUnset:
			f.Access = defaultAccess
		case defaultAccess == AccessReadOnly && f.Access != AccessReadOnly,
			defaultAccess == AccessReadWrite && f.Access != AccessReadWrite && f.Access != AccessWriteOnly:
			return nil, &AccessModeConflictError{Field: f.Name, Access: f.Access, Default: defaultAccess}
		}
		f.Signal = hdl.NewSignalReset(f.Name, f.Size, f.ResetValue())
	}

	return agg, nil
}

func checkFieldName(name string) error {
	if name == "" {
		return &NameResolutionError{Reason: "field has no name"}
	}
	if name != strings.ToLower(name) {
		return &NameResolutionError{Field: name, Reason: "field names must be lowercase"}
	}
	return nil
}

// Fields returns the laid-out fields in declared order.
func (a *FieldAggregate) Fields() []*Field { return a.fields }

// Field looks up a field by name.
func (a *FieldAggregate) Field(name string) (*Field, bool) {
	f, ok := a.byName[name]
	return f, ok
}

// Size is the last field's offset plus its size.
func (a *FieldAggregate) Size() int {
	return a.fields[len(a.fields)-1].Hi()
}

// Reset combines every field's reset value shifted to its offset.
func (a *FieldAggregate) Reset() *big.Int {
	reset := new(big.Int)
	for _, f := range a.fields {
		v := f.ResetValue()
		reset.Or(reset, v.Lsh(v, uint(f.Lo())))
	}
	return reset
}
