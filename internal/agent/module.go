package agent

import "go.uber.org/fx"

// Module provides the assistant runtime client, possibly nil when
// unconfigured.
var Module = fx.Module("agent", fx.Provide(NewHTTPClient))
