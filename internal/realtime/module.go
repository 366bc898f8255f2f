package realtime

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/invoicehub/internal/queue"
)

// Module wires the hub, the WebSocket handler and the periodic pollers.
// The hub doubles as the queue's event publisher.
var Module = fx.Module("realtime",
	fx.Provide(NewHub),
	fx.Provide(NewHandler),
	fx.Provide(func(h *Hub) queue.Publisher { return h }),
	fx.Invoke(runPollers),
)
