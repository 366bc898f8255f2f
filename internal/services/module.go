package services

import "go.uber.org/fx"

// Module provides the service access layer.
var Module = fx.Module("services", fx.Provide(New))
