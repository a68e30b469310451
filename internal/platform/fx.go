package platform

import (
	"github.com/agendobot/metrics/internal/platform/service"
	"go.uber.org/fx"
)

var Module = fx.Module("platform",
	fx.Provide(service.New),
)
