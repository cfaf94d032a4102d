package affiliate

import (
	"github.com/worldcitisim/affiliates/internal/affiliate/repository"
	"github.com/worldcitisim/affiliates/internal/affiliate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("affiliate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
