package docstore

import "go.uber.org/fx"

// Module provides the document store.
var Module = fx.Module("docstore", fx.Provide(NewGormStore))
