package domains

import (
	serverDomain "github.com/alex-galey/restricted-domains/internal/server-plugin/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("domains",
	fx.Provide(
		fx.Annotate(
			NewDomainsServerPlugin,
			fx.As(new(serverDomain.ServerPlugin)),
			fx.ResultTags(`group:"server_plugins"`),
		),
	),
)
