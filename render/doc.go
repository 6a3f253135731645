// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the shared-GPU-device contract used by both the
// shader pipeline and the window presenter.
//
// # Key principle
//
// camfx opens exactly one GPU device for the whole process. The device is
// handed to the shader package to run the fragment-shader chain and to the
// presenter package to draw the chain's output to a window surface. Neither
// side creates or destroys the device. That shared device is a
// *shader.Device; the types in this package are not used by the app,
// shader, or presenter packages.
//
// # Core interfaces
//
//   - DeviceHandle: GPU device/queue/adapter access, borrowed not owned.
//   - RenderTarget: where a frame ends up — PixmapTarget (CPU readback,
//     for the virtual-camera writer), TextureTarget (an intermediate
//     GPU texture, for a shader stage), or SurfaceTarget (the window's
//     current surface texture).
//
// # Thread safety
//
// Targets are not safe for concurrent use. The application loop owns them
// and accesses them from a single goroutine per spec.md §5.
package render
