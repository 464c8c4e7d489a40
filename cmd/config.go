package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	m "regotest.dev/pkg/regotest/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "regotest"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	excludeFlagName        = "exclude"
	batchFlagName          = "batch"
	enhancedErrorsFlagName = "enhanced-errors"
	timeoutFlagName        = "timeout"
	reportFlagName         = "report"
	plainFlagName          = "plain"
	verboseFlagName        = "verbose"
	workdirFlagName        = "workdir"

	opaCommandKey       = "opa.command"
	policyTestDirKey    = "opa.policy_test_dir"
	workdirKey          = "workdir"
	testFilePatternsKey = "paths.test_file_patterns"
	enhancedErrorsKey   = "run.enhanced_errors"
	batchKey            = "run.batch"
	timeoutKey          = "run.timeout"
	reportKey           = "report"

	defaultPolicyTestDir = "."
	defaultWorkdir       = "."
	defaultTimeout       = time.Minute * 2

	envPrefix = "REGOTEST"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".regotest.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var defaultTestFilePatterns = []string{"**/*_test.rego"}

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(opaCommandKey, defaultOPACommand(runtime.GOOS))
	viper.SetDefault(policyTestDirKey, defaultPolicyTestDir)
	viper.SetDefault(workdirKey, defaultWorkdir)
	viper.SetDefault(testFilePatternsKey, defaultTestFilePatterns)
	viper.SetDefault(enhancedErrorsKey, false)
	viper.SetDefault(batchKey, false)
	viper.SetDefault(timeoutKey, int64(defaultTimeout.Seconds()))
	viper.SetDefault(reportKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// defaultOPACommand returns the tool executable name for goos.
func defaultOPACommand(goos string) string {
	if goos == "windows" {
		return "opa.exe"
	}

	return "opa"
}

// loadRunConfig reads the run settings from viper. It is called at the start
// of every run so edits to the config file apply to the next run.
func loadRunConfig() (m.RunConfig, error) {
	cwd, err := filepath.Abs(viper.GetString(workdirKey))
	if err != nil {
		return m.RunConfig{}, fmt.Errorf("resolve workdir: %w", err)
	}

	command := strings.TrimSpace(viper.GetString(opaCommandKey))
	if command == "" {
		return m.RunConfig{}, fmt.Errorf("%s must not be empty", opaCommandKey)
	}

	seconds := viper.GetInt64(timeoutKey)
	if seconds < 0 {
		return m.RunConfig{}, fmt.Errorf("%s must not be negative, got %d", timeoutKey, seconds)
	}

	return m.RunConfig{
		Cwd:            m.Path(cwd),
		Command:        command,
		PolicyTestDir:  viper.GetString(policyTestDirKey),
		EnhancedErrors: viper.GetBool(enhancedErrorsKey),
		Batch:          viper.GetBool(batchKey),
		Timeout:        time.Duration(seconds) * time.Second,
	}, nil
}

// testFilePatterns returns the configured glob patterns, falling back to the
// defaults when none are set.
func testFilePatterns() []string {
	patterns := viper.GetStringSlice(testFilePatternsKey)
	if len(patterns) == 0 {
		return defaultTestFilePatterns
	}

	return patterns
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
