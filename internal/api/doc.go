// Package api provides the HTTP REST API and WebSocket server for Cell Core.
//
// It exposes camera discovery and MJPEG streaming, direct machine
// commands for the gantry and actuator, the job store CRUD surface, and
// real-time event broadcast over WebSocket.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
