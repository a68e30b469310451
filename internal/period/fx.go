package period

import (
	"github.com/agendobot/metrics/internal/period/service"
	"go.uber.org/fx"
)

var Module = fx.Module("period",
	fx.Provide(service.New),
)
