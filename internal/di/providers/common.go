package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// maintenanceInterval is how often the database and search index are tidied.
	maintenanceInterval = 24 * time.Hour
)
