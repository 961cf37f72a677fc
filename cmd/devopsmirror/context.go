package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"devopsmirror/internal/config"
)

type globalFlags struct {
	configPath string
	server     string
	format     string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.flags != nil {
			path = strings.TrimSpace(c.flags.configPath)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// watchPath returns the loaded config file, or "" when defaults were used.
func (c *commandContext) watchPath() string {
	if _, err := c.ensureConfig(); err != nil || !c.configSeen {
		return ""
	}
	return c.configPath
}

func (c *commandContext) format() string {
	if c.flags == nil {
		return formatTable
	}
	return normalizeFormat(c.flags.format)
}

func (c *commandContext) serverURL() string {
	if c.flags == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(c.flags.server), "/")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
