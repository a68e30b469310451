package appointment

import (
	"github.com/agendobot/metrics/internal/appointment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("appointment",
	fx.Provide(repository.Provide),
)
