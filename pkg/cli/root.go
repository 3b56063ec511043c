/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/config"
	"github.com/telekom/auditlog-forwarder/pkg/system"
)

// Options configures NewRootCommand.
type Options struct {
	ConfigPath   string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath string
	debug      bool
	writer     io.Writer
}

type runtimeKey struct{}

func DefaultOptions() Options {
	return Options{
		ConfigPath:   os.Getenv(config.ConfigPathEnv),
		OutputWriter: os.Stdout,
	}
}

// NewRootCommand creates the forwarder root command.
func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtimeState{configPath: opts.ConfigPath, writer: opts.OutputWriter}

	root := &cobra.Command{
		Use:           "forwarder",
		Short:         "Audit log forwarder",
		Long:          "Splits audit log events per patient resource, batches them and forwards the batches to the audit log store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey{}, rt))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath,
		"Path to the forwarder configuration file (default ./config.yaml or $"+config.ConfigPathEnv+")")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug level logging")

	root.AddCommand(
		NewServeCommand(),
		NewSendCommand(),
		NewVersionCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

// loadConfig loads and validates the configuration file.
func (rt *runtimeState) loadConfig() (config.Config, error) {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (rt *runtimeState) logger() (*zap.Logger, error) {
	return system.NewLogger(rt.debug)
}
