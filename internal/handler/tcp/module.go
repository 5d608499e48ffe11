package tcp

import "go.uber.org/fx"

var Module = fx.Module("handler.tcp",
	fx.Provide(NewHandler),
)
