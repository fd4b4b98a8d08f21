package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/pkg/config"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/module"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - modular server platform runtime",
	Long: `Burrow deploys and supervises modules: it resolves their include
graphs into a classpath, launches verticle instances, and redeploys
them automatically when a watched module directory changes.`,
	Version: Version,
}

var (
	configFile string
	logLevel   string
	repoURL    string
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "platform config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	installCmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to install from")
	runCmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to install missing modules from")
	runmodCmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to install missing modules from")

	addRunFlags(runCmd)
	runCmd.Flags().String("cp", "", "extra classpath entries")
	runCmd.Flags().String("includes", "", "comma-separated modules to add to the classpath")
	runCmd.Flags().Bool("worker", false, "run instances on worker goroutines")

	addRunFlags(runmodCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runmodCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("conf", "", "JSON config file passed to the verticles")
	cmd.Flags().Int("instances", 1, "number of instances to launch")
	cmd.Flags().Bool("cluster", false, "enable clustering")
	cmd.Flags().Int("cluster-port", 0, "cluster port")
	cmd.Flags().String("cluster-host", "", "cluster host")
	cmd.Flags().String("metrics", "", "address to expose Prometheus metrics on")
}

// loadConfig builds the platform config from file, flags and environment
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if repoURL != "" {
		// An explicitly given repository is consulted first
		cfg.Repositories = append([]string{repoURL}, cfg.Repositories...)
	}
	return cfg, nil
}

func initLogging() error {
	return log.Setup(logLevel, false, nil)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Burrow version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

var installCmd = &cobra.Command{
	Use:   "install <module>",
	Short: "Install a module from a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogging(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repos := make([]module.Repository, 0, len(cfg.Repositories))
		for _, base := range cfg.Repositories {
			repos = append(repos, module.NewHTTPRepository(base, cfg.ModRoot))
		}
		mgr, err := module.NewManager(cfg.ModRoot, repos...)
		if err != nil {
			return err
		}
		if err := mgr.Install(args[0]); err != nil {
			return err
		}
		fmt.Printf("Module %s installed\n", args[0])
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <module>",
	Short: "Delete an installed module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogging(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := module.NewManager(cfg.ModRoot)
		if err != nil {
			return err
		}
		if err := mgr.Uninstall(args[0]); err != nil {
			return err
		}
		fmt.Printf("Module %s uninstalled\n", args[0])
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <main>",
	Short: "Run a verticle main with an ad-hoc classpath",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlatform(cmd, args[0], false)
	},
}

var runmodCmd = &cobra.Command{
	Use:   "runmod <module>",
	Short: "Run an installed module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlatform(cmd, args[0], true)
	},
}
