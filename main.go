// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/highlight"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/ui"
)

const appName = "readaloud"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	engineName  string
	headlessRun bool
	quiet       bool
	play        bool
	voice       string
	width       uint
	mouse       bool

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE]",
		Short: "Read text aloud, one take at a time",
		Long: paragraph(
			fmt.Sprintf("\nRead text aloud on the CLI, %s.", keyword("one take at a time")),
		),
		Example:          paragraph("readaloud\nreadaloud story.md\nreadaloud https://example.com/essay.md\npbpaste | readaloud --headless"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	engineName = viper.GetString("engine")
	mouse = viper.GetBool("mouse")
	setLogLevel(viper.GetString("log.level"))

	switch engineName {
	case engineHTTP, engineMock:
	default:
		return fmt.Errorf("unknown engine %q: use %q or %q", engineName, engineHTTP, engineMock)
	}
	switch b := viper.GetString("title.backend"); b {
	case titleHTTP, titleOpenAI, titleNone:
	default:
		return fmt.Errorf("unknown title backend %q", b)
	}
	if viper.GetInt("take.max_length") < 1 {
		return fmt.Errorf("take.max_length must be positive, got %d", viper.GetInt("take.max_length"))
	}
	if v := viper.GetFloat64("audio.volume"); v < 0 || v > 2 {
		return fmt.Errorf("audio.volume must be between 0.0 and 2.0, got %.2f", v)
	}
	if viper.GetDuration("playback.delay") < 0 {
		return errors.New("playback.delay must not be negative")
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal {
		headlessRun = true
	}

	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	} else if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		arg = "-"
	}

	var doc *source.Document
	if arg != "" {
		d, err := source.NewLoader().Load(cmd.Context(), arg)
		if err != nil {
			return err
		}
		log.Debug("loaded source", "name", d.Name, "chars", len(d.Text))
		doc = &d
	}

	if headlessRun {
		if doc == nil {
			return errors.New("nothing to read: pass a file, a URL or - for stdin")
		}
		return runHeadless(cmd, *doc)
	}
	return runTUI(doc)
}

func openEngine() (*engine, error) {
	e, err := newEngine(engineOptions{Quiet: quiet})
	if err != nil {
		return nil, err
	}
	if voice != "" {
		if err := e.reader.ChangeVoice(voice); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

func runHeadless(cmd *cobra.Command, doc source.Document) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	h := newHeadless(e.reader, cmd.ErrOrStderr())
	h.logger.Info("reading", "source", doc.Name, "voice", e.reader.Snapshot().Voice.Name)
	return h.Run(cmd.Context(), doc.Text)
}

func runTUI(doc *source.Document) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.EnableMouse = mouse
	if doc != nil {
		cfg.Text = doc.Text
		cfg.Source = doc.Name
		cfg.AutoPlay = play
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	deps := ui.Deps{Reader: e.reader, Catalog: e.catalog, Prefs: e.prefs}
	if _, err := ui.NewProgram(cfg, deps).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "e", engineHTTP, "speech engine (http/mock)")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width")
	rootCmd.Flags().BoolVar(&headlessRun, "headless", false, "read without the TUI, logging each take")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not open the audio device")
	rootCmd.Flags().BoolVarP(&play, "play", "p", true, "start reading the source right away (TUI-mode only)")
	rootCmd.Flags().StringVarP(&voice, "voice", "v", "", "voice to read with, see readaloud voices")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("engine", engineHTTP)
	viper.SetDefault("api.url", "http://localhost:4000")
	viper.SetDefault("api.rate", 0)
	viper.SetDefault("api.timeout", 60*time.Second)
	viper.SetDefault("take.max_length", take.DefaultMaxLength)
	viper.SetDefault("playback.delay", time.Second)
	viper.SetDefault("playback.tick", 100*time.Millisecond)
	viper.SetDefault("highlight.pad", highlight.DefaultPad)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.volume", 1.0)
	viper.SetDefault("cache.memory_mb", 32)
	viper.SetDefault("cache.disk_mb", 512)
	viper.SetDefault("cache.compression", 3)
	viper.SetDefault("cache.ttl", 7*24*time.Hour)
	viper.SetDefault("title.backend", titleHTTP)
	viper.SetDefault("title.openai_model", "")
	viper.SetDefault("mock.delay", 200*time.Millisecond)
	viper.SetDefault("mock.per_rune", 60*time.Millisecond)
	viper.SetDefault("mock.tone", false)
	viper.SetDefault("log.level", "info")

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, takesCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	// A .env next to the working directory is optional.
	_ = godotenv.Load()

	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
