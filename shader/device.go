//go:build !nogpu

// Package shader owns the GPU device, compiles the fragment-shader chain,
// manages per-stage textures and bind groups, and executes the chain once
// per application-loop tick.
package shader

import (
	"fmt"
	"sync"

	"github.com/gogpu/camfx"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers gputypes.BackendVulkan
)

// Device owns the GPU instance, adapter, logical device, and queue used by
// the shader pipeline. It is constructed once at application startup and
// torn down on exit; the window presenter borrows the same logical device
// and queue rather than creating its own (SPEC_FULL.md §9, shared GPU
// device design note).
type Device struct {
	mu sync.RWMutex

	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue

	adapterName string
	initialized bool
}

// OpenDevice selects a GPU backend and opens a device and queue on it.
//
// Vulkan is preferred, matching the rest of the GPU stack's standalone
// initialization path. When no Vulkan backend is registered or no Vulkan
// adapter can be found (headless CI, software-only hosts), OpenDevice
// falls back to the noop backend so the rest of the pipeline can still be
// exercised without real hardware.
func OpenDevice() (*Device, error) {
	d := &Device{}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if ok {
		if err := d.openBackend(backend, "vulkan"); err == nil {
			d.initialized = true
			camfx.Logger().Debug("shader: device opened", "backend", "vulkan", "adapter", d.adapterName)
			return d, nil
		} else {
			camfx.Logger().Warn("shader: vulkan backend unavailable, falling back to noop", "error", err)
		}
	}

	noopBackend := noop.API{}
	if err := d.openBackend(noopBackend, "noop"); err != nil {
		return nil, fmt.Errorf("shader: OpenDevice: %w", err)
	}
	d.initialized = true
	camfx.Logger().Debug("shader: device opened", "backend", "noop", "adapter", d.adapterName)
	return d, nil
}

// backendAPI is the subset of hal.Backend/noop.API used to open a device.
// Both the registered Vulkan backend and noop.API satisfy this shape.
type backendAPI interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

func (d *Device) openBackend(backend backendAPI, name string) error {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create %s instance: %w", name, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("no %s adapters found", name)
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open %s device: %w", name, err)
	}

	d.instance = instance
	d.adapter = selected.Adapter
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.adapterName = selected.Info.Name
	return nil
}

// Close releases the device and instance. Close does not panic if called
// twice.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}

	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.adapter = nil
	d.queue = nil
	d.initialized = false
}

// Raw returns the underlying HAL device and queue for use by the rest of
// the shader package and by the presenter package, which borrows the same
// device.
func (d *Device) Raw() (hal.Device, hal.Queue) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.device, d.queue
}

// IsOpen reports whether the device has been successfully opened.
func (d *Device) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// AdapterName returns the selected adapter's reported name, empty if the
// device has not been opened.
func (d *Device) AdapterName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.adapterName
}
