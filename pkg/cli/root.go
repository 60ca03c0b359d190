// Package cli implements the autoflow command line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/config"
	"github.com/dshills/autoflow/pkg/credential"
	"github.com/dshills/autoflow/pkg/logging"
	"github.com/dshills/autoflow/pkg/workflow"
)

// Version is the current version of AutoFlow.
const Version = "0.3.0"

// App carries the dependencies shared by all commands. Fields that are set
// before the command runs are kept, which lets tests inject an in-memory
// repository and a fixed configuration.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Catalog     *catalog.Catalog
	Repo        workflow.Repository
	Credentials credential.Store

	configPath string
	debug      bool
	storeType  string
	closers    []func() error
}

// NewRootCommand creates the root cobra command for AutoFlow.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithApp(&App{})
}

// NewRootCommandWithApp creates the root command around app.
func NewRootCommandWithApp(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoflow",
		Short: "AutoFlow - workflow automation engine",
		Long: `AutoFlow builds and runs automation workflows: graphs of trigger, action,
data, AI, condition and utility nodes connected by standard, conditional
and error connections.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.init(cmd); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (default: ~/.autoflow/config.yaml)")
	cmd.PersistentFlags().BoolVar(&app.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&app.storeType, "store", "", "Workflow store: memory, file, sqlite or redis")

	cmd.AddCommand(newCatalogCommand(app))
	cmd.AddCommand(newWorkflowCommand(app))
	cmd.AddCommand(newRunCommand(app))
	cmd.AddCommand(newTestNodeCommand(app))
	cmd.AddCommand(newRunsCommand(app))
	cmd.AddCommand(newLogsCommand(app))
	cmd.AddCommand(newCredentialCommand(app))

	return cmd
}

// init loads configuration, then builds the logger, catalog and repository
// that are not already set.
func (a *App) init(cmd *cobra.Command) error {
	if a.Config == nil {
		v := config.New()
		if f := cmd.Root().PersistentFlags().Lookup("store"); f != nil && f.Changed {
			if err := v.BindPFlag("store.type", f); err != nil {
				return err
			}
		}
		cfg, err := config.Load(v, a.configPath)
		if err != nil {
			return err
		}
		a.Config = cfg
	} else if a.storeType != "" {
		a.Config.Store.Type = a.storeType
	}
	if a.debug {
		a.Config.Log.Level = "debug"
	}

	if a.Logger == nil {
		a.Logger = logging.New(a.Config.Log)
		a.closers = append(a.closers, func() error {
			_ = a.Logger.Sync()
			return nil
		})
	}

	if a.Catalog == nil {
		cat, err := loadCatalog(a.Config.Catalog.Extensions)
		if err != nil {
			return err
		}
		a.Catalog = cat
	}

	if a.Credentials == nil {
		a.Credentials = credential.NewKeyringStore("")
	}

	if a.Repo == nil {
		repo, closeFn, err := openRepository(cmd.Context(), a.Config)
		if err != nil {
			return err
		}
		a.Repo = repo
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
		a.Logger.Debug("Workflow store opened", zap.String("type", a.Config.Store.Type))
	}
	return nil
}

// Close releases resources opened by init.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// loadCatalog merges extension files over the built-in definitions.
func loadCatalog(paths []string) (*catalog.Catalog, error) {
	cat := catalog.Default()
	for _, path := range paths {
		ext, err := catalog.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if cat, err = cat.Merge(ext.List()...); err != nil {
			return nil, fmt.Errorf("failed to merge catalog %s: %w", path, err)
		}
	}
	return cat, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
