package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pageswarm/internal/banner"
	"pageswarm/internal/cli"
	"pageswarm/internal/config"
	"pageswarm/internal/dummy"
	"pageswarm/internal/logger"
	"pageswarm/internal/storage"
	"pageswarm/internal/tui/history"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pageswarm",
	Short: "pageswarm - browser-based website load testing",
	Long: `
pageswarm launches many concurrent headless Chrome sessions against a website.
Each simulated user gets a client profile, loads the page, reads, scrolls and
clicks around, then follows a few navigation links. Results are summarized on
the console and written to results.csv with per-user screenshots.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadTest(cmd.Context())
	},
}

// Execute runs the root command with SIGINT/SIGTERM cancelling the run.
func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pageswarm.yaml)")
	config.RegisterFlags(rootCmd.Flags())
	if err := config.Bind(v, rootCmd.Flags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(dummyCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigType("yaml")
			v.SetConfigName(".pageswarm")
		}
	}
	// A missing config file is fine; flags and env still apply.
	_ = v.ReadInConfig()
}

func runLoadTest(ctx context.Context) error {
	cfg := config.Load(v)

	// The dashboard owns the terminal, so logs go to a file next to the results.
	logOut := os.Stderr
	if cfg.TUI {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}
		f, err := os.Create(filepath.Join(cfg.OutputDir, "pageswarm.log"))
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	log, err := logger.New(cfg.LogLevel, logOut)
	if err != nil {
		return err
	}
	defer log.Sync()

	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("config file loaded", zap.String("path", used))
	}

	app := &cli.App{Cfg: cfg, Logger: log}
	_, err = app.Run(ctx)
	return err
}

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the built-in demo site to test against",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		noDelay, _ := cmd.Flags().GetBool("no-delay")

		log, err := logger.New("info", os.Stderr)
		if err != nil {
			return err
		}
		defer log.Sync()

		addr, err := dummy.NewServer(dummy.ServerConfig{Port: port, NoDelay: noDelay}, log).Start(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Demo site running on http://localhost:%d/ (%s)\n", port, addr)
		fmt.Println("   Pages: / /products /blog /about /contact /slow")

		<-cmd.Context().Done()
		return nil
	},
}

// --- History Subcommand ---
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.List()
		if err != nil {
			return err
		}
		m := history.NewModel(items)

		interactive, _ := cmd.Flags().GetBool("interactive")
		if !interactive || len(items) == 0 {
			fmt.Print(m.View())
			return nil
		}
		_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
		return err
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the settings and summary of one past run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		item, err := store.Get(args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		fmt.Print(history.Detail(*item))
		return nil
	},
}

func openHistory(cmd *cobra.Command) (*storage.Store, error) {
	cfg := config.Load(v)
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		cfg.HistoryPath = file
	}
	path, err := cli.HistoryPath(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run the demo site on")
	dummyCmd.Flags().Bool("no-delay", false, "Disable simulated server latency")

	historyCmd.Flags().BoolP("interactive", "i", false, "Browse history in a scrollable table")
	historyCmd.PersistentFlags().String("file", "", "History file (default $HOME/.pageswarm/history.db)")
	historyCmd.AddCommand(historyShowCmd)
}
