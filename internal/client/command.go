// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client contains a client for the quote service, this is the base of all client subcommands.
package client

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/attachment"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/health"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/lifecycle"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/quotes"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/tender"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command is the parent of the client subcommands.
var Command = &cobra.Command{
	Use:   "client",
	Short: "Run a quote service client command.",
	Long: `Run a quote service client command. Requests are sent as the actor given by
--actor-id and --actor-role.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.CheckURL(viper.GetString(shared.Address)); err != nil {
			return err
		}
		if err := cfg.CheckConnectAddr(viper.GetString(shared.GRPCAddress)); err != nil {
			return err
		}
		if role := viper.GetString(shared.ActorRole); role != "" {
			if _, err := quote.ParseRole(role); err != nil {
				return err
			}
			if viper.GetString(shared.ActorID) == "" {
				return fmt.Errorf("an actor role needs an actor id")
			}
		}

		if !viper.GetBool(shared.InsecureConn) {
			if ca := viper.GetString(shared.CACert); ca != "" {
				if err := cfg.CheckFilesExist(ca); err != nil {
					return err
				}
			}
			if viper.GetString(shared.ClientCert) != "" && viper.GetString(shared.ClientCertKey) != "" {
				if err := cfg.CheckFilesExist(
					viper.GetString(shared.ClientCert),
					viper.GetString(shared.ClientCertKey),
				); err != nil {
					return err
				}
			}
		}

		if viper.GetBool(shared.NoColor) {
			color.NoColor = true
		}

		return nil
	},
}

func init() {
	cfg.AddPersistentFlag(
		Command, shared.Address, "address", "Base URL of the quote service HTTP API.", "http://127.0.0.1:8080")
	cfg.AddPersistentFlag(
		Command, shared.GRPCAddress, "grpc-address", "Address of the gRPC health service.", "127.0.0.1:8081")
	cfg.AddPersistentFlag(
		Command, shared.InsecureConn, "insecure", "Disable TLS when connecting.", false)
	cfg.AddPersistentFlag(
		Command, shared.CACert, "ca-cert", "CA certificate of endpoint cert issuer", "")
	cfg.AddPersistentFlag(
		Command, shared.ClientCert, "client-cert", "Client certificate to use with endpoint", "")
	cfg.AddPersistentFlag(
		Command, shared.ClientCertKey, "client-cert-key", "Key for client certificate", "")
	cfg.AddPersistentFlag(
		Command, shared.AuthMD, "authorization-metadata", "Authorization value added to every request.", "")
	cfg.AddPersistentFlag(
		Command, shared.ActorID, "actor-id", "Party id to act as.", "")
	cfg.AddPersistentFlag(
		Command, shared.ActorRole, "actor-role", "Role to act as, buyer or seller.", "")
	cfg.AddPersistentFlag(
		Command, shared.NoColor, "no-colour", "Disable colour in output.", false)

	Command.AddCommand(quotes.Commands...)
	Command.AddCommand(lifecycle.Commands...)
	Command.AddCommand(attachment.UploadCommand, attachment.DownloadCommand)
	Command.AddCommand(tender.CancelCommand, tender.BroadcastCommand)
	Command.AddCommand(health.Command)
}
