package searchindex

import "go.uber.org/fx"

// Module provides the search index, possibly nil when unconfigured.
var Module = fx.Module("searchindex", fx.Provide(NewElasticIndex))
