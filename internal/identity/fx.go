package identity

import (
	"github.com/worldcitisim/affiliates/internal/identity/repository"
	"github.com/worldcitisim/affiliates/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
