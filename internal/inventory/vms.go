package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	logging "github.com/example/vmdisk-report/internal/log"
)

// VM is one virtual machine with the guest information VMware Tools reports.
// Guest is nil when the endpoint has no guest data for it.
type VM struct {
	Name  string
	Ref   types.ManagedObjectReference
	Guest *types.GuestInfo
}

// RawDisk is a guest volume as reported by the guest OS.
type RawDisk struct {
	Path          string
	CapacityBytes int64
	FreeBytes     int64
}

// ListVMs returns every virtual machine below the root folder, in the order
// the endpoint returns them.
func (s *Session) ListVMs(ctx context.Context) ([]VM, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	m := view.NewManager(s.client.Client)
	v, err := m.CreateContainerView(ctx, s.client.ServiceContent.RootFolder, []string{"VirtualMachine"}, true)
	if err != nil {
		return nil, fmt.Errorf("creating container view: %w", err)
	}
	defer func() {
		if err := v.Destroy(ctx); err != nil {
			log.Warn().Err(err).Msg("inventory: destroying container view")
		}
	}()

	var vms []mo.VirtualMachine
	if err := v.Retrieve(ctx, []string{"VirtualMachine"}, []string{"name", "guest"}, &vms); err != nil {
		return nil, fmt.Errorf("retrieving virtual machines: %w", err)
	}

	out := make([]VM, 0, len(vms))
	for _, vm := range vms {
		out = append(out, VM{Name: vm.Name, Ref: vm.Self, Guest: vm.Guest})
	}
	log.Debug().Int("vms", len(out)).Int64("ms", time.Since(start).Milliseconds()).Msg("inventory: listed")
	return out, nil
}

// GuestDisks returns the guest volumes of vm, in reported order.
func GuestDisks(vm VM) []RawDisk {
	if vm.Guest == nil {
		return nil
	}
	disks := make([]RawDisk, 0, len(vm.Guest.Disk))
	for _, d := range vm.Guest.Disk {
		disks = append(disks, RawDisk{
			Path:          d.DiskPath,
			CapacityBytes: d.Capacity,
			FreeBytes:     d.FreeSpace,
		})
	}
	return disks
}
