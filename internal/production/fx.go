package production

import (
	"github.com/shopfloor/moldtrack/internal/production/repository"
	"github.com/shopfloor/moldtrack/internal/production/service"
	"go.uber.org/fx"
)

var Module = fx.Module("production.service",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
