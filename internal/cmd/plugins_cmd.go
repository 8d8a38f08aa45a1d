/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/innabox/kubeapps-client/internal"
	"github.com/innabox/kubeapps-client/internal/api"
	"github.com/innabox/kubeapps-client/internal/clients"
	"github.com/innabox/kubeapps-client/internal/output"
)

// NewPluginsCommand creates and returns the `plugins` command.
func NewPluginsCommand() *cobra.Command {
	runner := &pluginsCommandRunner{}
	command := &cobra.Command{
		Use:   "plugins",
		Short: "Lists the plugins configured in the server",
		Args:  cobra.NoArgs,
		RunE:  runner.run,
	}
	flags := command.Flags()
	output.AddFlags(flags)
	return command
}

// pluginsCommandRunner contains the data and logic needed to run the `plugins` command.
type pluginsCommandRunner struct {
	logger *slog.Logger
	flags  *pflag.FlagSet
}

// run runs the `plugins` command.
func (c *pluginsCommandRunner) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	c.logger = internal.LoggerFromContext(ctx)

	// Save the flags:
	c.flags = cmd.Flags()

	// Create the output writer first, so that mistakes in the format or the query are reported before calling
	// the server:
	writer, err := output.NewWriter().
		SetLogger(c.logger).
		SetOut(cmd.OutOrStdout()).
		SetFlags(c.flags).
		Build()
	if err != nil {
		return err
	}

	// Create the client:
	client, err := clients.NewClient().
		SetLogger(c.logger).
		SetFlags(c.flags).
		Build()
	if err != nil {
		return err
	}
	defer func() {
		err := client.Close()
		if err != nil {
			c.logger.ErrorContext(
				ctx,
				"Failed to close client",
				slog.Any("error", err),
			)
		}
	}()

	// Get the plugins:
	request := api.NewGetConfiguredPluginsRequest()
	response := api.NewGetConfiguredPluginsResponse()
	err = client.Plugins().Invoke(ctx, api.GetConfiguredPlugins.Method, request, response)
	if err != nil {
		return err
	}
	return writer.WriteMessage(ctx, response)
}
