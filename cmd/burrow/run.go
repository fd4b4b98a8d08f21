package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/module"
	"github.com/burrowhq/burrow/pkg/platform"
)

// runPlatform starts the platform, deploys the operand as a module or an
// ad-hoc verticle and blocks until interrupted.
func runPlatform(cmd *cobra.Command, operand string, asModule bool) error {
	if err := initLogging(); err != nil {
		return err
	}
	logger := log.WithComponent("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if clustered, _ := cmd.Flags().GetBool("cluster"); clustered {
		logger.Warn().Msg("Clustering is not supported by this build; running standalone")
	}

	p, err := platform.New(cfg)
	if err != nil {
		return err
	}
	defer p.Stop()

	// The built-in factory backs entry points no language module claims
	p.Factories().Register(module.DefaultFactoryKey, func() deploy.Factory {
		return loggingFactory{platform: p}
	})

	if addr, _ := cmd.Flags().GetString("metrics"); addr != "" {
		p.ServeMetrics(addr)
	}

	confFile, _ := cmd.Flags().GetString("conf")
	conf, err := platform.ConfigFromFile(confFile)
	if err != nil {
		return err
	}
	instances, _ := cmd.Flags().GetInt("instances")
	if instances < 1 {
		return fmt.Errorf("instances must be >= 1: %d", instances)
	}

	result := make(chan error, 1)
	done := func(id string, err error) {
		if err != nil {
			result <- err
			return
		}
		logger.Info().Str("deployment", id).Msg("Deployed")
		result <- nil
	}

	if asModule {
		p.DeployModule(deploy.Options{
			Module:    operand,
			Config:    conf,
			Instances: instances,
		}, done)
	} else {
		cp, _ := cmd.Flags().GetString("cp")
		includes, _ := cmd.Flags().GetString("includes")
		worker, _ := cmd.Flags().GetBool("worker")
		p.DeployVerticle(deploy.VerticleOptions{
			Worker:    worker,
			Main:      operand,
			Config:    conf,
			Classpath: filepath.SplitList(cp),
			Instances: instances,
			Includes:  includes,
		}, done)
	}

	if err := <-result; err != nil {
		return err
	}

	// Block until interrupted, like any long-running daemon
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
	return nil
}

// loggingFactory is the built-in verticle factory: instances announce
// their lifecycle and otherwise idle. Language runtimes register richer
// factories through the registry.
type loggingFactory struct {
	platform *platform.Platform
}

func (f loggingFactory) CreateVerticle(main string, classpath []string) (deploy.Verticle, error) {
	return &loggingVerticle{main: main}, nil
}

type loggingVerticle struct {
	main string
}

func (v *loggingVerticle) Start(ctx *deploy.Context) error {
	logger := ctx.Logger()
	logger.Info().Str("main", v.main).Str("cwd", ctx.WorkDir()).Msg("Verticle started")
	return nil
}

func (v *loggingVerticle) Stop() error {
	return nil
}
