// Package cli implements the coopchat command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coopchat-go/internal/app"
	"github.com/0xcro3dile/coopchat-go/internal/config"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var (
	configPath string
	memoryMode bool

	// App is the wired application. Commands build it on first use; tests
	// may assign it beforehand.
	App     *app.App
	ownsApp bool

	out io.Writer = os.Stdout
)

// skipApp marks commands that run without the application.
const skipApp = "skip-app"

var rootCmd = &cobra.Command{
	Use:   "coopchat",
	Short: "Conversational billing and emergency assistant for a water cooperative",
	Long: `coopchat answers customer questions about water bills ("boletas") and
takes emergency reports through a multi-turn conversation.

It serves an HTTP API, offers an interactive terminal chat, and manages the
knowledge base each chatbot draws its answers from.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipApp] == "true" || App != nil {
			return nil
		}
		return initApp()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !ownsApp || App == nil {
			return nil
		}
		err := App.Close()
		App, ownsApp = nil, false
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipApp: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(out, "coopchat %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./coopchat.yaml or $HOME/.coopchat/coopchat.yaml)")
	rootCmd.PersistentFlags().BoolVar(&memoryMode, "memory", false, "keep conversations, records and knowledge in memory")
	rootCmd.AddCommand(versionCmd)
}

func initApp() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if memoryMode {
		cfg.Storage.Driver = "memory"
		cfg.Knowledge.Backend = "memory"
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initializing coopchat: %w", err)
	}
	App, ownsApp = a, true
	return nil
}

func parseDomainArg(arg string) (entities.Domain, error) {
	d, err := entities.ParseDomain(arg)
	if err != nil {
		return "", fmt.Errorf("%w (use billing or emergency)", err)
	}
	return d, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
