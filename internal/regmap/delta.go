package regmap

import "strconv"

// Delta captures added and removed register map rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
// A row whose content changed shows up as one removal and one addition.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// ComputeUnitDeltas pairs the register maps of two runs by unit and computes
// a delta for each unit that changed. A unit present in only one run is
// compared against an empty map.
func ComputeUnitDeltas(prev, next []Tables) []Delta {
	byUnit := make(map[string]Tables, len(prev))
	for _, t := range prev {
		byUnit[t.Unit] = t
	}
	deltas := []Delta{}
	seen := make(map[string]bool, len(next))
	for _, t := range next {
		seen[t.Unit] = true
		old, ok := byUnit[t.Unit]
		if !ok {
			old = emptyTables()
			old.Unit = t.Unit
		}
		if d := ComputeDelta(old, t); !d.Empty() {
			deltas = append(deltas, d)
		}
	}
	for _, t := range prev {
		if seen[t.Unit] {
			continue
		}
		gone := emptyTables()
		gone.Unit = t.Unit
		deltas = append(deltas, ComputeDelta(t, gone))
	}
	return deltas
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()
	out.Unit = to.Unit
	out.BusWidth = to.BusWidth
	out.DecodeBits = to.DecodeBits

	out.Registers = diffRows(from.Registers, to.Registers, func(r RegisterRow) string {
		return r.Name + "|" + r.Kind + "|" + itoa(r.Size) + "|" + itoa(r.Words) + "|" + r.Reset + "|" +
			boolKey(r.AtomicWrite) + "|" + boolKey(r.WriteFromDev) + "|" + itoa(r.AlignmentBits) + "|" + r.File
	})
	out.Slots = diffRows(from.Slots, to.Slots, func(r SlotRow) string {
		return r.Name + "|" + r.Register + "|" + itoa(r.Address) + "|" + itoa(r.Word) + "|" +
			itoa(r.Width) + "|" + itoa(r.Lo) + "|" + itoa(r.Hi) + "|" + r.Access
	})
	out.Fields = diffRows(from.Fields, to.Fields, func(r FieldRow) string {
		return r.Register + "|" + r.Name + "|" + itoa(r.Lo) + "|" + itoa(r.Hi) + "|" + r.Access + "|" +
			r.Reset + "|" + boolKey(r.Pulse) + "|" + itoa(r.Values)
	})
	out.FieldValues = diffRows(from.FieldValues, to.FieldValues, func(r FieldValueRow) string {
		return r.Register + "|" + r.Field + "|" + r.Value + "|" + r.Name + "|" + r.Description
	})
	out.Constants = diffRows(from.Constants, to.Constants, func(r ConstantRow) string {
		return r.Name + "|" + r.Value + "|" + itoa(r.Width) + "|" + r.File
	})
	out.Memories = diffRows(from.Memories, to.Memories, func(r MemoryRow) string {
		return r.Name + "|" + itoa(r.Width) + "|" + itoa(r.Depth) + "|" + r.File
	})

	return out
}

// Empty reports whether the delta has no rows.
func (d Delta) Empty() bool {
	return d.Added.rows() == 0 && d.Removed.rows() == 0
}

func (t Tables) rows() int {
	return len(t.Registers) + len(t.Slots) + len(t.Fields) + len(t.FieldValues) + len(t.Constants) + len(t.Memories)
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func itoa(v int) string { return strconv.Itoa(v) }
