package config

import "go.uber.org/fx"

// Module wires application config and the threshold catalog holder.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewThresholdsHolder,
	),
)
