package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/shared"
	"github.com/furisto/seyal/shared/config"
)

// Set through -ldflags at release time.
var (
	Version   = "unknown"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	defaultSession     = "default"
	sentryFlushTimeout = 2 * time.Second
)

type globalOptions struct {
	LogLevel   LogLevel
	ConfigPath string
	Session    string
}

func NewRootCmd() *cobra.Command {
	options := globalOptions{}
	cmd := &cobra.Command{
		Use:   "seyal",
		Short: "SEYAL: The Action Agent",
		Long: figure.NewColorFigure("seyal", "standard", "blue", true).String() +
			"\nSequential Multi-Agent System with Context Compaction",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			userInfo := getUserInfo(cmd.Context())

			options.LogLevel = resolveLogLevel(cmd, &options)
			slog.SetDefault(slog.New(slog.NewJSONHandler(setupLogSink(cmd.Context(), userInfo, cmd.ErrOrStderr()), &slog.HandlerOptions{
				Level: options.LogLevel.SlogLevel(),
			})))

			options.Session = resolveSession(cmd, &options)
			cmd.SetContext(setGlobalOptions(cmd.Context(), &options))

			if _, ok := cmd.Context().Value(ContextKeyConfig).(*config.Config); ok {
				return nil
			}

			store := config.NewStore(getFileSystem(cmd.Context()), userInfo)
			if options.ConfigPath != "" {
				store = store.WithPath(options.ConfigPath)
			}

			cfg, err := store.Load()
			if err != nil {
				return err
			}
			cmd.SetContext(setConfig(cmd.Context(), cfg))

			return nil
		},
	}

	cmd.PersistentFlags().Var(&options.LogLevel, "log-level", "set the log level")
	cmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "", "path of the config file (default is the user config dir)")
	cmd.PersistentFlags().StringVar(&options.Session, "session", "", "session to work on (default \"default\", or $SEYAL_SESSION)")

	cmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Coaching Commands"},
		&cobra.Group{ID: "session", Title: "Session Management"},
		&cobra.Group{ID: "system", Title: "System Commands"},
	)

	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewTasksCmd())
	cmd.AddCommand(NewLogCmd())
	cmd.AddCommand(NewReflectCmd())

	cmd.AddCommand(NewStateCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewAPIKeyCmd())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(sentryFlushTimeout)
			fmt.Fprintf(os.Stderr, "seyal crashed: %v\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if dsn := os.Getenv("SEYAL_SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: Version,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize sentry: %s\n", err)
		}
	}

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var userErr *fail.UserError
		if !errors.As(err, &userErr) && !shared.IsUserError(err) {
			sentry.CaptureException(err)
		}
		sentry.Flush(sentryFlushTimeout)
		os.Exit(1)
	}

	sentry.Flush(sentryFlushTimeout)
}

func resolveSession(cmd *cobra.Command, options *globalOptions) string {
	if cmd.Flags().Changed("session") && options.Session != "" {
		return options.Session
	}

	if session := os.Getenv("SEYAL_SESSION"); session != "" {
		return session
	}
	return defaultSession
}

// confirm asks a yes/no question. Anything but y or yes, including EOF, is a no.
func confirm(stdin io.Reader, stdout io.Writer, message string) bool {
	fmt.Fprintf(stdout, "%s (y/n): ", message)
	var answer string
	if _, err := fmt.Fscan(stdin, &answer); err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// LogLevel is the --log-level flag value.
type LogLevel string

var logLevels = map[LogLevel]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (l *LogLevel) String() string {
	if l == nil {
		return ""
	}
	return string(*l)
}

func (l *LogLevel) Set(v string) error {
	if _, ok := logLevels[LogLevel(v)]; !ok {
		return errors.New(`must be one of "debug", "info", "warn", or "error"`)
	}
	*l = LogLevel(v)
	return nil
}

func (l *LogLevel) Type() string { return "log-level" }

// SlogLevel defaults to warn for an unset level.
func (l *LogLevel) SlogLevel() slog.Level {
	if level, ok := logLevels[*l]; ok {
		return level
	}
	return slog.LevelWarn
}

func resolveLogLevel(cmd *cobra.Command, options *globalOptions) LogLevel {
	if cmd.Flags().Changed("log-level") {
		return options.LogLevel
	}

	var level LogLevel
	if err := level.Set(strings.ToLower(os.Getenv("SEYAL_LOG_LEVEL"))); err == nil {
		return level
	}
	return "warn"
}

// setupLogSink writes logs to the terminal and to a rotated file in the log
// directory.
func setupLogSink(ctx context.Context, userInfo shared.UserInfo, stderr io.Writer) io.Writer {
	if disable, ok := ctx.Value(ContextKeyDisableFileLogs).(bool); ok && disable {
		return stderr
	}

	logDir, err := userInfo.LogDir()
	if err != nil {
		return stderr
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "seyal.json"),
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
	return io.MultiWriter(stderr, fileLogger)
}
