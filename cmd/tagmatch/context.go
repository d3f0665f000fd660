package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"tagmatch/internal/config"
	"tagmatch/internal/logger"
)

type globalFlags struct {
	config    string
	verbose   bool
	providers []string
	mode      string
}

// commandContext loads the configuration and logger once per invocation.
type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     config.Config
	configPath string
	configErr  error

	logOnce sync.Once
	log     *logger.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig applies CLI flags over the config file over defaults and
// validates the result.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.config)
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if path == "" {
			path = config.FindConfigFile()
		}
		c.configPath = path

		if c.flags.verbose {
			cfg.Verbose = true
		}
		if cmd.Flags().Changed("providers") {
			cfg.Providers = c.flags.providers
		}
		if c.flags.mode != "" {
			cfg.Mode = c.flags.mode
		}

		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("configuration error: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger returns the session logger. Outside verbose mode detailed logs go to
// a rotated file instead of the terminal.
func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		c.log = logger.New(c.config.Verbose)

		if !c.config.Verbose {
			logFile := c.config.LogFile
			if logFile == "" {
				logFile = filepath.Join(config.GetDefaultLogPath(), fmt.Sprintf("tagmatch_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			}
			if err := c.log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				c.log.Debug("Logging to file: %s", logFile)
			}
		}

		if c.configPath != "" {
			c.log.Debug("Loaded configuration from: %s", c.configPath)
		}
	})
	return c.log
}

func (c *commandContext) close() {
	if c.log != nil {
		c.log.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
