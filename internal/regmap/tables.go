package regmap

import (
	"fmt"
	"math/big"

	"github.com/robert-at-pretension-io/csrc/internal/csr"
)

// Tables is the relational register map of one compilation unit.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Unit        string          `json:"unit"`
	BusWidth    int             `json:"bus_width"`
	DecodeBits  int             `json:"decode_bits"`
	Registers   []RegisterRow   `json:"registers"`
	Slots       []SlotRow       `json:"slots"`
	Fields      []FieldRow      `json:"fields"`
	FieldValues []FieldValueRow `json:"field_values"`
	Constants   []ConstantRow   `json:"constants"`
	Memories    []MemoryRow     `json:"memories"`
}

type RegisterRow struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Size          int    `json:"size"`
	Words         int    `json:"words"`
	Reset         string `json:"reset"`
	AtomicWrite   bool   `json:"atomic_write"`
	WriteFromDev  bool   `json:"write_from_dev"`
	AlignmentBits int    `json:"alignment_bits"`
	Description   string `json:"description"`
	File          string `json:"file"`
}

type SlotRow struct {
	Name     string `json:"name"`
	Register string `json:"register"`
	Address  int    `json:"address"`
	Word     int    `json:"word"`
	Width    int    `json:"width"`
	Lo       int    `json:"lo"`
	Hi       int    `json:"hi"`
	Access   string `json:"access"`
}

type FieldRow struct {
	Register    string `json:"register"`
	Name        string `json:"name"`
	Lo          int    `json:"lo"`
	Hi          int    `json:"hi"`
	Access      string `json:"access"`
	Reset       string `json:"reset"`
	Pulse       bool   `json:"pulse"`
	Values      int    `json:"values"`
	Description string `json:"description"`
}

type FieldValueRow struct {
	Register    string `json:"register"`
	Field       string `json:"field"`
	Value       string `json:"value"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ConstantRow struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Width       int    `json:"width"`
	Description string `json:"description"`
	File        string `json:"file"`
}

type MemoryRow struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Depth       int    `json:"depth"`
	Description string `json:"description"`
	File        string `json:"file"`
}

// BuildTables flattens a bank and the collected memories and constants into
// rows. sources maps an item ID to the description file it came from.
func BuildTables(bank *csr.Bank, memories []*csr.Memory, constants []*csr.Constant, sources map[csr.ID]string) Tables {
	tables := emptyTables()
	tables.BusWidth = bank.BusWidth
	tables.DecodeBits = bank.DecodeBits

	words := make(map[csr.ID]int)
	for _, s := range bank.Slots {
		words[s.Register.ID()]++
	}

	for _, r := range bank.Registers {
		row := RegisterRow{
			Name:        r.Name(),
			Kind:        string(r.Kind()),
			Size:        r.Size(),
			Words:       words[r.ID()],
			Reset:       hex(registerReset(r)),
			Description: r.Description(),
			File:        sources[r.ID()],
		}
		if s, ok := r.(*csr.Storage); ok {
			row.AtomicWrite = s.AtomicWrite()
			row.WriteFromDev = s.WriteFromDev()
			row.AlignmentBits = s.AlignmentBits()
		}
		tables.Registers = append(tables.Registers, row)

		if agg := r.Fields(); agg != nil {
			for _, f := range agg.Fields() {
				tables.Fields = append(tables.Fields, FieldRow{
					Register:    r.Name(),
					Name:        f.Name,
					Lo:          f.Lo(),
					Hi:          f.Hi(),
					Access:      string(f.Access),
					Reset:       hex(f.ResetValue()),
					Pulse:       f.Pulse,
					Values:      len(f.Values),
					Description: f.Description,
				})
				for _, v := range f.Values {
					tables.FieldValues = append(tables.FieldValues, FieldValueRow{
						Register:    r.Name(),
						Field:       f.Name,
						Value:       hex(new(big.Int).SetUint64(v.Value)),
						Name:        v.Name,
						Description: v.Description,
					})
				}
			}
		}
	}

	for _, s := range bank.Slots {
		tables.Slots = append(tables.Slots, SlotRow{
			Name:     s.Name(),
			Register: s.Register.Name(),
			Address:  s.Address,
			Word:     s.Word,
			Width:    s.Size(),
			Lo:       s.Lo,
			Hi:       s.Hi,
			Access:   slotAccess(s.Register),
		})
	}

	for _, c := range constants {
		tables.Constants = append(tables.Constants, ConstantRow{
			Name:        c.Name(),
			Value:       hex(c.Value()),
			Width:       c.Width(),
			Description: c.Description(),
			File:        sources[c.ID()],
		})
	}

	for _, m := range memories {
		tables.Memories = append(tables.Memories, MemoryRow{
			Name:        m.Name(),
			Width:       m.Width(),
			Depth:       m.Depth(),
			Description: m.Description(),
			File:        sources[m.ID()],
		})
	}

	return tables
}

func registerReset(r csr.Register) *big.Int {
	switch r := r.(type) {
	case *csr.Status:
		return r.Status.Reset()
	case *csr.Storage:
		return r.StorageFull.Reset()
	}
	return new(big.Int)
}

func slotAccess(r csr.Register) string {
	switch r.Kind() {
	case csr.KindStatus:
		return string(csr.AccessReadOnly)
	case csr.KindStorage:
		return string(csr.AccessReadWrite)
	}
	return "bus"
}

func hex(v *big.Int) string {
	return fmt.Sprintf("0x%x", v)
}

func emptyTables() Tables {
	return Tables{
		Registers:   []RegisterRow{},
		Slots:       []SlotRow{},
		Fields:      []FieldRow{},
		FieldValues: []FieldValueRow{},
		Constants:   []ConstantRow{},
		Memories:    []MemoryRow{},
	}
}
