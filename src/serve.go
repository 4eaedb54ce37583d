package cytosight

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cirello.io/oversight"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oncodata/cytosight/src/application/component/web"
	"github.com/oncodata/cytosight/src/application/service"
	"github.com/oncodata/cytosight/src/config"
	"github.com/oncodata/cytosight/src/domain"
)

type ServeCmd struct {
	WebListen string `arg:"--web-listen,env:CYTOSIGHT_WEB_LISTEN" default:"127.0.0.1:8000"`
	Model     string `arg:"--model,env:CYTOSIGHT_MODEL" default:"models/model.json" help:"path of the model artifact"`
	Username  string `arg:"--auth-username,env:AUTH_UN" help:"Basic auth username"`
	Password  string `arg:"--auth-password,env:AUTH_PW" help:"Basic auth password"`
}

func (cmd ServeCmd) Run(logger *zerolog.Logger) error {
	instance, err := NewInstance(cmd, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return instance.Run(ctx)
}

type InstanceOpts interface {
	NewModel() (domain.Model, error)
	NewWebConfig() (config.WebConfig, error)
}

func (cmd ServeCmd) NewModel() (domain.Model, error) {
	return domain.LoadLogisticRegression(cmd.Model)
}

func (cmd ServeCmd) NewWebConfig() (config.WebConfig, error) {
	return config.NewWebConfig(cmd.WebListen, cmd.Username, cmd.Password)
}

func NewInstance(opts InstanceOpts, logger *zerolog.Logger) (Instance, error) {
	instance := Instance{logger: logger}

	var model domain.Model
	if m, err := opts.NewModel(); err != nil {
		return instance, errors.WithMessage(err, "While loading the model artifact")
	} else {
		model = m
	}

	inferenceService, err := service.NewInferenceService(model, logger)
	if err != nil {
		return instance, errors.WithMessage(err, "While checking the model artifact against the serving schema")
	}

	if cfg, err := opts.NewWebConfig(); err != nil {
		return instance, err
	} else {
		instance.Web = &web.Web{
			Config:           cfg,
			Logger:           logger.With().Str("component", "Web").Logger(),
			InferenceService: inferenceService,
		}
	}

	return instance, nil
}

type Instance struct {
	Web *web.Web

	logger *zerolog.Logger
}

func (self Instance) Run(ctx context.Context) error {
	self.logger.Info().Str("version", domain.BuildInfo.Version).Msg("Starting components")

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: self.logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	if err := supervisor.Add(self.Web.Start); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}

	<-ctx.Done()
	return nil
}
