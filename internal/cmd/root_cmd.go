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
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/innabox/kubeapps-client/internal"
	"github.com/innabox/kubeapps-client/internal/auth"
	"github.com/innabox/kubeapps-client/internal/clients"
	"github.com/innabox/kubeapps-client/internal/logging"
)

// NewRootCommand creates and returns the root command of the command line tool.
func NewRootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:               "kubeapps-client",
		Short:             "Client for the Kubeapps APIs server",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: runRoot,
	}
	flags := command.PersistentFlags()
	logging.AddFlags(flags)
	clients.AddFlags(flags)
	flags.String(
		routeFlagName,
		"",
		"Route of the hosting application, for example '/c/my-cluster/ns/kubeapps/apps'. The cluster "+
			"is taken from it when the privileged token is acquired.",
	)
	command.AddCommand(NewPluginsCommand())
	command.AddCommand(NewTokenCommand())
	return command
}

// runRoot creates the logger and puts it into the context of the command, so that sub-commands can get it with the
// internal.LoggerFromContext function.
func runRoot(cmd *cobra.Command, argv []string) error {
	// Create the logger:
	logger, err := logging.NewLogger().
		SetErr(cmd.ErrOrStderr()).
		SetFlags(cmd.Flags()).
		Build()
	if err != nil {
		return err
	}

	// Configure the gRPC and Kubernetes libraries to use the logger. The gRPC logger itself is installed by the main
	// function, here we only change where it writes.
	err = logging.ForwardGrpcLogger(logger)
	if err != nil {
		return err
	}
	klog.SetLogger(logr.FromSlogHandler(logger.Handler()))

	// Save the logger and the route in the context:
	ctx := internal.LoggerIntoContext(cmd.Context(), logger)
	route, err := cmd.Flags().GetString(routeFlagName)
	if err != nil {
		return err
	}
	if route != "" {
		ctx = auth.ContextWithRoute(ctx, route)
	}
	cmd.SetContext(ctx)
	return nil
}

const routeFlagName = "route"
