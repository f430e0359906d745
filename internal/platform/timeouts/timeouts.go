// Package timeouts defines shared timeout constants used across the trade
// service. Centralizing these values keeps the durations discoverable and
// prevents drift between the HTTP and gRPC surfaces.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
