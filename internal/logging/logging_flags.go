/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package logging

import (
	"github.com/spf13/pflag"
)

// AddFlags adds to the given flag set the flags needed to configure the logger and the logging interceptor. For
// example:
//
//	logging.AddFlags(flags)
//
// Will add the following flags:
//
//	--log-level Log level.
//	--log-file Log file.
//	--log-field Custom log field.
//	--log-redact Redact security sensitive fields.
//	--log-headers Write the metadata of the calls.
//	--log-bodies Write the messages of the calls.
func AddFlags(flags *pflag.FlagSet) {
	_ = flags.String(
		levelFlagName,
		"info",
		"Log level, one of 'debug', 'info', 'warn' or 'error'.",
	)
	_ = flags.String(
		fileFlagName,
		"stderr",
		"Log file. The values 'stdout' and 'stderr' mean the standard output and error streams.",
	)
	_ = flags.StringArray(
		fieldFlagName,
		[]string{},
		"Custom log field with the format 'name=value'. The value '%p' is replaced by the process identifier. "+
			"Can be repeated.",
	)
	_ = flags.Bool(
		redactFlagName,
		true,
		"Replace security sensitive values, like tokens, with '***'.",
	)
	_ = flags.Bool(
		headersFlagName,
		false,
		"Write the metadata of the outgoing calls. This requires the 'debug' log level.",
	)
	_ = flags.Bool(
		bodiesFlagName,
		false,
		"Write the request and response messages of the outgoing calls. This requires the 'debug' log level.",
	)
}

// Names of the flags:
const (
	levelFlagName   = "log-level"
	fileFlagName    = "log-file"
	fieldFlagName   = "log-field"
	redactFlagName  = "log-redact"
	headersFlagName = "log-headers"
	bodiesFlagName  = "log-bodies"
)
