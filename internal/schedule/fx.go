package schedule

import (
	"github.com/shopfloor/moldtrack/internal/schedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("schedule.service",
	fx.Provide(service.NewService),
)
