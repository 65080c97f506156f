package storage

import "tessgen/internal/ports"

// Provider is the storage contract used by the CLI, the API and the worker.
type Provider = ports.StorageProvider
