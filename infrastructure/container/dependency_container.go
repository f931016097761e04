package container

import (
	"log/slog"

	"pkgdeploy-cli/driver/filesystem_driver"
	"pkgdeploy-cli/driver/system_driver"
	"pkgdeploy-cli/gateway/command_gateway"
	"pkgdeploy-cli/gateway/credential_gateway"
	"pkgdeploy-cli/gateway/notification_gateway"
	"pkgdeploy-cli/gateway/platform_gateway"
	"pkgdeploy-cli/gateway/registry_gateway"
	"pkgdeploy-cli/gateway/transaction_gateway"
	"pkgdeploy-cli/infrastructure/config"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/usecase/deployment_usecase"
	"pkgdeploy-cli/usecase/platform_usecase"
	"pkgdeploy-cli/usecase/recovery_usecase"
	"pkgdeploy-cli/usecase/validation_usecase"
	"pkgdeploy-cli/utils/colors"
	"pkgdeploy-cli/utils/logger"
)

// Container wires the drivers, gateways and usecases together. Built once
// at startup; commands pull what they need from it.
type Container struct {
	Config *config.Config
	Logger logger_port.LoggerPort

	Store      *transaction_gateway.TransactionStore
	Platforms  *platform_usecase.PlatformRegistry
	Deployment *deployment_usecase.DeploymentUsecase
	Rollback   *recovery_usecase.RollbackEngine
}

// Build constructs the full dependency graph from configuration
func Build(cfg *config.Config) (*Container, error) {
	log := logger.NewLoggerWithLevel(parseLevel(cfg.LogLevel))
	if cfg.NoColor {
		colors.DisableColor()
	}

	system := system_driver.NewSystemDriver()
	fs := filesystem_driver.NewFileSystemDriver()

	store, err := transaction_gateway.NewTransactionStore(cfg.DataDir, fs, log)
	if err != nil {
		return nil, err
	}

	commands := command_gateway.NewCommandGateway(system, log)
	registry := registry_gateway.NewRegistryGateway(log)
	credentials := credential_gateway.NewEnvResolver(system, log)
	notifier := notification_gateway.NewWebhookNotifier(cfg.WebhookURL, log)

	platforms := platform_usecase.NewPlatformRegistry(cfg.PlatformDir, fs, registry, log)
	if err := platforms.Load(); err != nil {
		return nil, err
	}

	factory := platform_gateway.NewFactory(commands, registry, fs, log)
	validator := validation_usecase.NewValidator(fs, registry, log)

	rollback := recovery_usecase.NewRollbackEngine(store, factory, platforms, credentials, registry, commands, log)

	cancels := deployment_usecase.NewCancelRegistry()
	executor := deployment_usecase.NewPipelineExecutor(store, factory, platforms, credentials, validator, log, cancels)
	deployment := deployment_usecase.NewDeploymentUsecase(store, executor, rollback, notifier, cancels, log)

	return &Container{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Platforms:  platforms,
		Deployment: deployment,
		Rollback:   rollback,
	}, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
