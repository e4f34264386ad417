package asset

import (
	"github.com/shopfloor/moldtrack/internal/asset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("asset.service",
	fx.Provide(service.NewService),
)
