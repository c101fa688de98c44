package csr

import (
	"fmt"
	"strings"
)

// NameResolutionError reports a register or field that cannot be named.
type NameResolutionError struct {
	Register string
	Field    string
	Reason   string
}

func (e *NameResolutionError) Error() string {
	return "name resolution: " + where(e.Register, e.Field) + e.Reason
}

// NameCollisionError reports a duplicate field name in one aggregate or a
// duplicate item name in one collection root.
type NameCollisionError struct {
	Register string
	Field    string
	Name     string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("name collision: %s%q is already used", where(e.Register, e.Field), e.Name)
}

// LayoutOverlapError reports a field whose explicit offset lies below the
// end of the previous field.
type LayoutOverlapError struct {
	Register string
	Field    string
	Offset   int
	Cursor   int
}

func (e *LayoutOverlapError) Error() string {
	return fmt.Sprintf("layout overlap: %soffset %d is below the next free bit %d",
		where(e.Register, e.Field), e.Offset, e.Cursor)
}

// AccessModeConflictError reports a field access mode the register does not allow.
type AccessModeConflictError struct {
	Register string
	Field    string
	Access   Access
	Default  Access
}

func (e *AccessModeConflictError) Error() string {
	return fmt.Sprintf("access mode conflict: %saccess %q is not allowed in a %s register",
		where(e.Register, e.Field), e.Access, e.Default)
}

// ConfigurationError reports invalid sizes, widths or finalization order.
type ConfigurationError struct {
	Register string
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + where(e.Register, e.Field) + e.Reason
}

func where(register, field string) string {
	var parts []string
	if register != "" {
		parts = append(parts, "register "+register)
	}
	if field != "" {
		parts = append(parts, "field "+field)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ") + ": "
}

// inRegister fills in the register name of errors raised before the
// register name was known to the caller.
func inRegister(err error, name string) error {
	switch e := err.(type) {
	case *NameResolutionError:
		if e.Register == "" {
			e.Register = name
		}
	case *NameCollisionError:
		if e.Register == "" {
			e.Register = name
		}
	case *LayoutOverlapError:
		if e.Register == "" {
			e.Register = name
		}
	case *AccessModeConflictError:
		if e.Register == "" {
			e.Register = name
		}
	case *ConfigurationError:
		if e.Register == "" {
			e.Register = name
		}
	}
	return err
}
