package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"formedit/engine/internal/appdirs"
	"formedit/engine/internal/engine"
	"formedit/engine/internal/envfile"
	"formedit/engine/internal/envutil"
	"formedit/engine/internal/logging"
	"formedit/engine/internal/rpc"
)

var (
	dataDirFlag string
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:           "formedit-engine",
	Short:         "Edit XLSForm SpreadsheetML workbooks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve JSON-RPC over stdin/stdout",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default $"+appdirs.DataDirEnv+" or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "write a debug log under the data directory")
	rootCmd.AddCommand(serveCmd, inspectCmd, applyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup resolves the data directory and logger shared by every command.
// Flags win over the environment.
func setup() (string, *slog.Logger, func() error, error) {
	envResult := envfile.Load()
	dataDir := dataDirFlag
	if dataDir == "" {
		dir, err := appdirs.DataDir()
		if err != nil {
			return "", nil, nil, err
		}
		dataDir = dir
	}
	debug := debugFlag || envutil.Debug()
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "engine")
	if logSetup.Enabled {
		logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Applied, "ignored", envResult.Ignored)
	}
	if envResult.Err != nil {
		logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	closeLog := logSetup.Close
	if closeLog == nil {
		closeLog = func() error { return nil }
	}
	return dataDir, logger, closeLog, nil
}

func newEngine() (*engine.Engine, *slog.Logger, func() error, error) {
	dataDir, logger, closeLog, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(engine.WithLogger(logger), engine.WithDataDir(dataDir))
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		_ = closeLog()
		return nil, nil, nil, fmt.Errorf("engine init failed: %w", err)
	}
	return eng, logger, closeLog, nil
}

func serve(cmd *cobra.Command, args []string) error {
	eng, logger, closeLog, err := newEngine()
	if err != nil {
		return err
	}
	defer closeLog()

	server := rpc.NewServer(engine.APIVersion, os.Stdin, os.Stdout, logger)
	eng.SetNotifier(server.Notify)

	server.RegisterInfo("EngineGetInfo", eng.EngineGetInfo)
	server.RegisterInfo("DocumentInspect", eng.DocumentInspect)
	server.RegisterInfo("DocumentClone", eng.DocumentClone)
	server.RegisterInfo("DocumentMerge", eng.DocumentMerge)
	server.RegisterInfo("DocumentMergeByFilter", eng.DocumentMergeByFilter)
	server.RegisterInfo("DocumentExportXLSX", eng.DocumentExportXLSX)
	server.RegisterInfo("SessionCreate", eng.SessionCreate)
	server.RegisterInfo("SessionGet", eng.SessionGet)
	server.RegisterInfo("SessionExecute", eng.SessionExecute)
	server.RegisterInfo("VersionsList", eng.VersionsList)
	server.RegisterInfo("VersionRestore", eng.VersionRestore)
	server.RegisterInfo("ReviewGetDiff", eng.ReviewGetDiff)
	server.RegisterInfo("SettingsGet", eng.SettingsGet)
	server.RegisterInfo("SettingsUpdate", eng.SettingsUpdate)

	logger.Info("engine.serving", "methods", len(server.Methods()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return server.Serve(ctx)
}
