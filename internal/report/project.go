// Package report turns guest disk records into the rows and documents an
// operator reads.
package report

import (
	"math"
	"sort"

	"github.com/example/vmdisk-report/internal/inventory"
	"github.com/example/vmdisk-report/internal/types"
)

const bytesPerMB = 1 << 20

// Project converts one guest disk into a report row. Megabytes and the
// percentage are rounded half to even. A disk reporting zero capacity keeps
// its row but has no percentage.
func Project(vmName string, d inventory.RawDisk) types.DiskRow {
	row := types.DiskRow{
		VM:         vmName,
		Path:       d.Path,
		CapacityMB: toMB(d.CapacityBytes),
		FreeMB:     toMB(d.FreeBytes),
	}
	if d.CapacityBytes > 0 {
		row.FreePercent = freePercent(d.FreeBytes, d.CapacityBytes)
		row.PercentKnown = true
	}
	return row
}

func toMB(b int64) int64 {
	return int64(math.RoundToEven(float64(b) / bytesPerMB))
}

// freePercent is clamped to [0,100]; guests have been seen reporting more
// free space than capacity on thin volumes.
func freePercent(free, capacity int64) int {
	p := math.RoundToEven(100 * float64(free) / float64(capacity))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

// Rows projects every guest disk of every VM, preserving enumeration order.
func Rows(vms []inventory.VM) []types.DiskRow {
	var rows []types.DiskRow
	for _, vm := range vms {
		for _, d := range inventory.GuestDisks(vm) {
			rows = append(rows, Project(vm.Name, d))
		}
	}
	return rows
}

// SortByFreePercent returns a copy of rows ordered by free percentage,
// lowest first. Equal percentages keep their relative order and rows
// without a percentage go last.
func SortByFreePercent(rows []types.DiskRow) []types.DiskRow {
	sorted := make([]types.DiskRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PercentKnown != b.PercentKnown {
			return a.PercentKnown
		}
		return a.FreePercent < b.FreePercent
	})
	return sorted
}
