package blobstore

import "go.uber.org/fx"

// Module provides the blob store, possibly nil when unconfigured.
var Module = fx.Module("blobstore", fx.Provide(NewGCSStore))
