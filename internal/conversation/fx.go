package conversation

import (
	"github.com/agendobot/metrics/internal/conversation/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation",
	fx.Provide(repository.Provide),
)
