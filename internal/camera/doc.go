// Package camera shares exclusive capture devices between concurrent consumers.
//
// A physical camera can be opened by exactly one process at a time, but
// several operators may want to watch the same feed. The Manager bridges
// that gap with reference-counted sessions: the first Acquire for a key
// opens the device and starts a capture goroutine, further Acquires just
// take a reference, and the Release that returns the count to zero stops
// the loop and closes the device.
//
// # Guarantees
//
//   - At most one live session, one open device, and one capture loop per key.
//   - Reference counts never go negative (Release of an unheld key errors).
//   - Teardown closes the device even if the capture loop fails to stop
//     within the bounded join timeout.
//   - The latest frame is replaced atomically as a whole; readers may see
//     a stale frame, never a torn one.
//
// # Backends
//
// Real capture uses V4L2Backend (MJPG, reduced resolution, single
// buffer). SimBackend substitutes synthetic JPEG frames on hosts without
// camera hardware; the Manager is oblivious to which is in use.
package camera
