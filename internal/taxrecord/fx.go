package taxrecord

import (
	"github.com/smallbiznis/taxtracker/internal/taxrecord/repository"
	"github.com/smallbiznis/taxtracker/internal/taxrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxrecord.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(service.NewCalendar),
)
