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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/innabox/kubeapps-client/internal"
	"github.com/innabox/kubeapps-client/internal/clients"
)

// NewTokenCommand creates and returns the `token` command.
func NewTokenCommand() *cobra.Command {
	runner := &tokenCommandRunner{}
	command := &cobra.Command{
		Use:   "token",
		Short: "Acquires and prints the privileged token",
		Args:  cobra.NoArgs,
		RunE:  runner.run,
	}
	flags := command.Flags()
	flags.StringVar(
		&runner.cluster,
		"cluster",
		"",
		"Cluster for which the token is requested. The default cluster is used if not specified.",
	)
	return command
}

// tokenCommandRunner contains the data and logic needed to run the `token` command.
type tokenCommandRunner struct {
	logger  *slog.Logger
	flags   *pflag.FlagSet
	cluster string
}

// run runs the `token` command.
func (c *tokenCommandRunner) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	c.logger = internal.LoggerFromContext(ctx)

	// Save the flags:
	c.flags = cmd.Flags()

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

	// Get the token:
	token, err := client.PrivilegedToken(ctx, c.cluster)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
