package audit

import (
	"github.com/worldcitisim/affiliates/internal/audit/repository"
	"github.com/worldcitisim/affiliates/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
