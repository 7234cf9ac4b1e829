package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vimtypes "github.com/vmware/govmomi/vim25/types"

	"github.com/example/vmdisk-report/internal/inventory"
	"github.com/example/vmdisk-report/internal/types"
)

const mb = 1 << 20

func TestProject(t *testing.T) {
	tests := []struct {
		name        string
		disk        inventory.RawDisk
		wantCap     int64
		wantFree    int64
		wantPercent int
		wantKnown   bool
	}{
		{"exact", inventory.RawDisk{Path: "/", CapacityBytes: 10000 * mb, FreeBytes: 2000 * mb}, 10000, 2000, 20, true},
		{"half MB rounds to even down", inventory.RawDisk{CapacityBytes: 2*mb + mb/2, FreeBytes: mb / 2}, 2, 0, 20, true},
		{"half MB rounds to even up", inventory.RawDisk{CapacityBytes: 3*mb + mb/2, FreeBytes: 3*mb + mb/2}, 4, 4, 100, true},
		{"percent half to even", inventory.RawDisk{CapacityBytes: 200, FreeBytes: 5}, 0, 0, 2, true},
		{"percent half to even odd", inventory.RawDisk{CapacityBytes: 200, FreeBytes: 7}, 0, 0, 4, true},
		{"full", inventory.RawDisk{CapacityBytes: 100 * mb, FreeBytes: 100 * mb}, 100, 100, 100, true},
		{"empty", inventory.RawDisk{CapacityBytes: 100 * mb}, 100, 0, 0, true},
		{"free above capacity clamps", inventory.RawDisk{CapacityBytes: 100 * mb, FreeBytes: 150 * mb}, 100, 150, 100, true},
		{"negative free clamps", inventory.RawDisk{CapacityBytes: 100 * mb, FreeBytes: -1 * mb}, 100, -1, 0, true},
		{"zero capacity", inventory.RawDisk{Path: "/mnt", FreeBytes: 5 * mb}, 0, 5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Project("vm", tt.disk)
			assert.Equal(t, "vm", row.VM)
			assert.Equal(t, tt.disk.Path, row.Path)
			assert.Equal(t, tt.wantCap, row.CapacityMB, "capacity")
			assert.Equal(t, tt.wantFree, row.FreeMB, "free")
			assert.Equal(t, tt.wantKnown, row.PercentKnown, "known")
			assert.Equal(t, tt.wantPercent, row.FreePercent, "percent")
		})
	}
}

func TestProject_PercentInRange(t *testing.T) {
	for capacity := int64(1); capacity < 300; capacity += 7 {
		for free := int64(0); free <= capacity; free += 3 {
			row := Project("vm", inventory.RawDisk{CapacityBytes: capacity, FreeBytes: free})
			require.True(t, row.PercentKnown)
			require.GreaterOrEqual(t, row.FreePercent, 0)
			require.LessOrEqual(t, row.FreePercent, 100)
		}
	}
}

func TestRows_PreservesEnumerationOrder(t *testing.T) {
	vms := []inventory.VM{
		{Name: "b", Guest: &vimtypes.GuestInfo{Disk: []vimtypes.GuestDiskInfo{
			{DiskPath: "/", Capacity: 100 * mb, FreeSpace: 90 * mb},
			{DiskPath: "/data", Capacity: 100 * mb, FreeSpace: 10 * mb},
		}}},
		{Name: "off"},
		{Name: "a", Guest: &vimtypes.GuestInfo{Disk: []vimtypes.GuestDiskInfo{
			{DiskPath: `C:\`, Capacity: 100 * mb, FreeSpace: 50 * mb},
		}}},
	}

	rows := Rows(vms)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"b/", "b/data", `aC:\`}, []string{
		rows[0].VM + rows[0].Path, rows[1].VM + rows[1].Path, rows[2].VM + rows[2].Path,
	})
}

func TestSortByFreePercent(t *testing.T) {
	rows := []types.DiskRow{
		{VM: "a", FreePercent: 50, PercentKnown: true},
		{VM: "zero", PercentKnown: false},
		{VM: "b", FreePercent: 10, PercentKnown: true},
		{VM: "c", FreePercent: 50, PercentKnown: true},
		{VM: "d", FreePercent: 0, PercentKnown: true},
	}
	original := append([]types.DiskRow(nil), rows...)

	sorted := SortByFreePercent(rows)

	var names []string
	for _, r := range sorted {
		names = append(names, r.VM)
	}
	assert.Equal(t, []string{"d", "b", "a", "c", "zero"}, names)
	assert.Equal(t, original, rows, "input must not be reordered")
}

func twoVMReport() *types.Report {
	return &types.Report{
		Title:            "VM Disk Space Report",
		Endpoint:         "vcenter.lab.local",
		Product:          "VMware vCenter Server 8.0",
		Timestamp:        time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		WarnBelowPercent: 25,
		Rows: []types.DiskRow{
			{VM: "vm2", Path: "/", CapacityMB: 5000, FreeMB: 4000, FreePercent: 80, PercentKnown: true},
			{VM: "vm1", Path: "/", CapacityMB: 10000, FreeMB: 2000, FreePercent: 20, PercentKnown: true},
			{VM: "vm3", Path: "/mnt", CapacityMB: 0, FreeMB: 0},
		},
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(twoVMReport())
	require.NoError(t, err)
	html := string(out)

	assert.Equal(t, 2, strings.Count(html, "<table>"))
	for _, needle := range []string{
		"<title>VM Disk Space Report</title>",
		CaptionByPercent,
		CaptionByVM,
		"vcenter.lab.local",
		"VMware vCenter Server 8.0",
		"N/A",
		"2026-03-01 06:00:00 UTC",
	} {
		assert.Contains(t, html, needle)
	}

	byPercent := html[strings.Index(html, CaptionByPercent):strings.Index(html, CaptionByVM)]
	byVM := html[strings.Index(html, CaptionByVM):]

	assert.Less(t, strings.Index(byPercent, "vm1"), strings.Index(byPercent, "vm2"), "lowest free first")
	assert.Less(t, strings.Index(byPercent, "vm2"), strings.Index(byPercent, "vm3"), "unknown percent last")
	assert.Less(t, strings.Index(byVM, "vm2"), strings.Index(byVM, "vm1"), "enumeration order kept")

	// vm1 is under the 25% threshold, vm2 is not.
	assert.Equal(t, 2, strings.Count(html, `class="low"`))
}

func TestRenderHTML_Escapes(t *testing.T) {
	r := &types.Report{Rows: []types.DiskRow{{VM: "<script>x</script>", Path: "/", PercentKnown: true}}}
	out, err := RenderHTML(r)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>x</script>")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func TestRenderTable(t *testing.T) {
	frag, err := RenderTable("Only", twoVMReport().Rows[:1], 0)
	require.NoError(t, err)
	assert.Contains(t, frag, "<caption>Only</caption>")
	assert.Contains(t, frag, "80%")
	assert.NotContains(t, frag, "<html>")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(twoVMReport())
	require.NoError(t, err)

	for _, needle := range []string{
		"# VM Disk Space Report",
		"## " + CaptionByPercent,
		"## " + CaptionByVM,
		"| vm1 | / | 10000 | 2000 | **20%** |",
		"| vm2 | / | 5000 | 4000 | 80% |",
		"| vm3 | /mnt | 0 | 0 | N/A |",
	} {
		if !strings.Contains(out, needle) {
			t.Fatalf("markdown missing %q\n\n%s", needle, out)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "N/A", FormatPercent(types.DiskRow{}))
	assert.Equal(t, "0%", FormatPercent(types.DiskRow{PercentKnown: true}))
	assert.Equal(t, "42%", FormatPercent(types.DiskRow{FreePercent: 42, PercentKnown: true}))
}
