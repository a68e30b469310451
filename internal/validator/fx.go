package validator

import (
	"github.com/agendobot/metrics/internal/validator/service"
	"go.uber.org/fx"
)

var Module = fx.Module("validator",
	fx.Provide(service.New),
)
