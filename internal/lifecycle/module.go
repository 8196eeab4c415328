package lifecycle

import "go.uber.org/fx"

var Module = fx.Module("lifecycle",
	fx.Provide(NewHost),
	fx.Invoke(func(host *Host, lc fx.Lifecycle) {
		host.RegisterHooks(lc)
	}),
)
