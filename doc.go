// Package camfx is a real-time webcam shader transformer.
//
// It captures video from a physical camera, runs a chain of GPU fragment
// shaders over each frame — optionally gated by a person-segmentation alpha
// mask and augmented with auxiliary image/video textures — and publishes
// the result to either an on-screen window or a platform virtual-camera
// sink that other applications consume as if it were a real webcam.
//
// # Architecture
//
// Three producers run on dedicated threads at their own pace. Capture and
// segmentation hand off their latest output through a one-slot mailbox
// (package mailbox); video decoders use a short bounded channel:
//
//   - capture.Worker owns the camera and publishes the latest RGBA frame.
//   - segmentation.Worker runs person-segmentation inference and publishes
//     the latest alpha mask; it only exists when a loaded shader actually
//     references the mask binding.
//   - video.Decoder, one per auxiliary texture slot, decodes an external
//     video and serves the frame matching the current playback time.
//
// app.Loop runs on the main thread at the configured frame rate. Each tick
// it pulls the latest camera frame, hands it to shader.Pipeline (which
// owns the textures and the compiled shader chain and runs them on the GPU
// device app.Loop opens and shares with the window presenter), and hands
// the pipeline's output texture to a presenter.Presenter — either a window
// surface or a platform virtual-camera writer.
//
// # Non-goals
//
// Audio, recording to file, UI controls, multi-camera composition,
// authoring of shaders, and colour management beyond BT.709 are out of
// scope. Command-line parsing, config-file loading/watching, and camera
// enumeration UI are external concerns this module is configured by, not
// a part of it.
package camfx
