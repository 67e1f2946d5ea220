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

// Package health checks the gRPC health service of a running server.
package health

import (
	"context"
	"fmt"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Command asks the server whether it is serving.
var Command = &cobra.Command{
	Use:   "health",
	Short: "Check whether the server is serving.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, ok := viper.Get("initCTX").(context.Context)
		if !ok {
			return fmt.Errorf("couldn't fetch initial context")
		}

		client, conn, err := shared.GetHealthClient()
		if err != nil {
			return fmt.Errorf("couldn't initialise gRPC client: %w", err)
		}
		defer conn.Close()

		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("server is %s", resp.GetStatus())
		}
		ui.Info("Server is serving")
		return nil
	},
}
