package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/Dhana009/haystack/pkg/logger"
)

// Environment variables consulted when the matching flag is unset.
const (
	logFileEnvVar   = "LOG_FILE"
	logLevelEnvVar  = "LOG_LEVEL"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLoggerFromCLI installs the process logger from CLI flags,
// falling back to environment variables. The format defaults to text
// on a terminal and json otherwise, so piped output stays parseable.
// The returned cleanup closes the log file, when one was opened.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	level := cliLevel
	if level == "" {
		level = os.Getenv(logLevelEnvVar)
	}

	file := cliFile
	if file == "" {
		file = os.Getenv(logFileEnvVar)
	}

	format := cliFormat
	if format == "" {
		format = os.Getenv(logFormatEnvVar)
	}

	output := os.Stderr
	cleanup := func() {}
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = closeFn
	}

	if format == "" {
		if term.IsTerminal(int(output.Fd())) {
			format = "text"
		} else {
			format = "json"
		}
	}

	logger.Init(logger.ParseLevel(level), output, format)
	return cleanup, nil
}
