package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdowns of the HTTP server and of the
// poster mirror queue drained after a sync.
var ShutdownTimeout = 10 * time.Second
