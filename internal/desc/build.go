package desc

import (
	"fmt"

	"github.com/robert-at-pretension-io/csrc/internal/csr"
)

// Tree is the component tree built from one description.
type Tree struct {
	Root *csr.Module
	// Sources maps the ID of every register, memory and constant to the file
	// that declared it.
	Sources map[csr.ID]string
}

// Build creates the components a description declares. Within a module,
// registers are created first, then constants, memories and submodules, so
// collection order follows the file.
func Build(d *Description, file string) (*Tree, error) {
	t := &Tree{Sources: make(map[csr.ID]string)}
	root, err := t.module(d, file)
	if err != nil {
		return nil, err
	}
	t.Root = root
	return t, nil
}

func (t *Tree) module(d *Description, file string) (*csr.Module, error) {
	m := csr.NewModule()

	for i := range d.Registers {
		r, err := buildRegister(&d.Registers[i])
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		if err := m.AddRegister(r); err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		t.Sources[r.ID()] = file
	}

	for _, cd := range d.Constants {
		c, err := csr.NewConstant(cd.Name, cd.Value.Int(), cd.Width, cd.Description)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		if err := m.AddConstant(c); err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		t.Sources[c.ID()] = file
	}

	for _, md := range d.Memories {
		mem, err := csr.NewMemory(md.Name, md.Width, md.Depth, md.Description)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		if err := m.AddMemory(mem); err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		t.Sources[mem.ID()] = file
	}

	for i := range d.Submodules {
		sub, err := t.module(&d.Submodules[i], file)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
		if err := m.AddSubmodule(d.Submodules[i].Name, sub); err != nil {
			return nil, fmt.Errorf("module %s: %w", d.Name, err)
		}
	}

	m.Exclude(d.Exclude...)
	return m, nil
}

func buildRegister(rd *RegisterDesc) (csr.Register, error) {
	size := rd.Size
	if size == 0 && len(rd.Fields) == 0 {
		size = 1
	}
	fields, err := buildFields(rd)
	if err != nil {
		return nil, err
	}

	switch csr.Kind(rd.Kind) {
	case csr.KindCSR:
		if len(rd.Fields) > 0 || rd.Reset.Int().Sign() != 0 {
			return nil, &csr.ConfigurationError{Register: rd.Name, Reason: "plain registers have no fields or reset value"}
		}
		c, err := csr.NewCSR(rd.Name, size)
		if err != nil {
			return nil, err
		}
		c.SetDescription(rd.Description)
		return c, nil
	case csr.KindStatus:
		if rd.AtomicWrite || rd.WriteFromDev || rd.AlignmentBits != 0 {
			return nil, &csr.ConfigurationError{Register: rd.Name, Reason: "status registers take no write options"}
		}
		return csr.NewStatus(rd.Name, csr.StatusConfig{
			Size:        size,
			Reset:       rd.Reset.Int(),
			Fields:      fields,
			Description: rd.Description,
		})
	case csr.KindStorage:
		return csr.NewStorage(rd.Name, csr.StorageConfig{
			Size:          size,
			Reset:         rd.Reset.Int(),
			Fields:        fields,
			Description:   rd.Description,
			AtomicWrite:   rd.AtomicWrite,
			WriteFromDev:  rd.WriteFromDev,
			AlignmentBits: rd.AlignmentBits,
		})
	}
	return nil, &csr.ConfigurationError{Register: rd.Name, Reason: fmt.Sprintf("unknown register kind %q", rd.Kind)}
}

func buildFields(rd *RegisterDesc) ([]csr.Field, error) {
	var fields []csr.Field
	for _, fd := range rd.Fields {
		size := fd.Size
		if size == 0 {
			size = 1
		}
		f := csr.Field{
			Name:        fd.Name,
			Size:        size,
			Offset:      fd.Offset,
			Access:      csr.Access(fd.Access),
			Pulse:       fd.Pulse,
			Description: fd.Description,
		}
		if fd.Reset != nil {
			f.Reset = fd.Reset.Int()
		}
		for _, vd := range fd.Values {
			v := vd.Value.Int()
			if !v.IsUint64() {
				return nil, &csr.ConfigurationError{Register: rd.Name, Field: fd.Name, Reason: fmt.Sprintf("value %s of %s is too wide", v, vd.Name)}
			}
			f.Values = append(f.Values, csr.FieldValue{Value: v.Uint64(), Name: vd.Name, Description: vd.Description})
		}
		fields = append(fields, f)
	}
	return fields, nil
}
