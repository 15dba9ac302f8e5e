// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements the CLI entry points, one cobra subcommand
// per mode of operation.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/skupperproject/skupper-router/common"
)

var rootCmd = &cobra.Command{
	Use:     common.App,
	Short:   "A multi-protocol AMQP/HTTP2 message router core",
	Version: common.Version,
}

// Execute runs the CLI, dispatching to whichever subcommand was named.
func Execute() error {
	return rootCmd.Execute()
}
