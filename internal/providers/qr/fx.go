package qr

import "go.uber.org/fx"

var Module = fx.Module("qr.provider",
	fx.Provide(NewClient),
)
