/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package output

import (
	"fmt"

	"github.com/spf13/pflag"
)

// AddFlags adds the flags that control the output format to the given flag set.
func AddFlags(flags *pflag.FlagSet) {
	_ = flags.StringP(
		formatFlagName,
		"o",
		string(FormatJSON),
		fmt.Sprintf("Output format, one of %v.", Formats()),
	)
	_ = flags.StringP(
		queryFlagName,
		"q",
		"",
		"Query in jq syntax used to filter the output, for example '.plugins[].name'.",
	)
}

// Names of the flags:
const (
	formatFlagName = "output"
	queryFlagName  = "query"
)
