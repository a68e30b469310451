package billing

import (
	"github.com/agendobot/metrics/internal/billing/repository"
	"github.com/agendobot/metrics/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
