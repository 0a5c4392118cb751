package common

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/di"
)

// InitializeContainer creates the DI container from the loaded configuration
// and installs its logger as the process-wide logger
func InitializeContainer(ctx context.Context) (*di.Container, error) {
	cfg := GetGlobalConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}

	container, err := di.NewContainer(ctx, di.ConfigFromApp(cfg))
	if err != nil {
		return nil, err
	}
	app.SetLogger(container.GetLogger())
	return container, nil
}
