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

// Package server provides the serve subcommand.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/justinas/alice"
	"github.com/luigi-borriello-dev/dome-quotes/internal/auth"
	"github.com/luigi-borriello-dev/dome-quotes/internal/authforwarder"
	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote/api"
	"github.com/luigi-borriello-dev/dome-quotes/quote/details"
	"github.com/luigi-borriello-dev/dome-quotes/quote/directory"
	"github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sloghttp "github.com/samber/slog-http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout  = 10 * time.Second
	directoryTimeout = 5 * time.Second
)

// Configuration keys.
const (
	listenAddr          = "server.address"
	port                = "server.port"
	grpcPort            = "server.grpcPort"
	workers             = "engine.workers"
	childTimeout        = "engine.childTimeout"
	maxAttachmentSize   = "engine.maxAttachmentSize"
	requireExpectedDate = "engine.requireExpectedDate"
	directoryURL        = "directory.url"
	organizations       = "directory.organizations"
	products            = "directory.products"
)

func init() {
	cfg.AddPersistentFlag(Command, listenAddr, "address", "Listen address", "0.0.0.0")
	cfg.AddPersistentFlag(Command, port, "port", "HTTP API listen port", 8080)
	cfg.AddPersistentFlag(Command, grpcPort, "grpc-port", "gRPC health service listen port", 8081)

	cfg.AddPersistentFlag(Command, workers, "workers", "Concurrent child operations of a tender fan-out",
		statemachine.DefaultWorkers)
	cfg.AddPersistentFlag(Command, childTimeout, "child-timeout", "Timeout of one child operation of a fan-out",
		statemachine.DefaultChildTimeout)
	cfg.AddPersistentFlag(Command, maxAttachmentSize, "max-attachment-size", "Attachment size limit in bytes",
		int64(statemachine.DefaultMaxAttachmentSize))
	cfg.AddPersistentFlag(Command, requireExpectedDate, "require-expected-date",
		"Require an expected date before a seller accepts a request", false)

	cfg.AddPersistentFlag(Command, directoryURL, "directory-url",
		"Base URL of the party and product catalog API used for display names", "")
	cfg.AddPersistentFlag(Command, organizations, "organizations", "Static organization id to name map", map[string]string{})
	cfg.AddPersistentFlag(Command, products, "products", "Static product id to name map", map[string]string{})
}

// Command validates the configuration and starts the server.
var Command = &cobra.Command{
	Use:   "serve",
	Short: "Start the quote negotiation service",
	Long: `Starts the HTTP API serving quote negotiations, and a gRPC health service
that reports SERVING once the storage is ready.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := newCommand()
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, ok := viper.Get("initCTX").(context.Context)
		if !ok {
			return fmt.Errorf("couldn't fetch initial context")
		}
		c, err := newCommand()
		if err != nil {
			return err
		}
		return c.run(ctx)
	},
}

type command struct {
	ListenAddr string
	Port       int
	GRPCPort   int

	StorageConfig

	Workers             int
	ChildTimeout        time.Duration
	MaxAttachmentSize   int64
	RequireExpectedDate bool

	DirectoryURL  string
	Organizations map[string]string
	Products      map[string]string
}

func newCommand() (*command, error) {
	c := &command{
		ListenAddr:          viper.GetString(listenAddr),
		Port:                viper.GetInt(port),
		GRPCPort:            viper.GetInt(grpcPort),
		StorageConfig:       StorageConfigFromViper(),
		Workers:             viper.GetInt(workers),
		ChildTimeout:        viper.GetDuration(childTimeout),
		MaxAttachmentSize:   viper.GetInt64(maxAttachmentSize),
		RequireExpectedDate: viper.GetBool(requireExpectedDate),
		DirectoryURL:        viper.GetString(directoryURL),
		Organizations:       viper.GetStringMapString(organizations),
		Products:            viper.GetStringMapString(products),
	}
	return c, c.validate()
}

func (c *command) validate() error {
	if err := cfg.CheckListenPort(c.Port); err != nil {
		return err
	}
	if err := cfg.CheckListenPort(c.GRPCPort); err != nil {
		return err
	}
	if c.Port == c.GRPCPort {
		return fmt.Errorf("HTTP and gRPC ports must differ, both are %d", c.Port)
	}
	if err := c.StorageConfig.Validate(); err != nil {
		return err
	}
	if c.DirectoryURL != "" {
		if _, err := cfg.CheckURL(c.DirectoryURL); err != nil {
			return err
		}
	}
	return errors.Join(
		cfg.CheckPositive(workers, c.Workers),
		cfg.CheckPositive(childTimeout, c.ChildTimeout),
		cfg.CheckPositive(maxAttachmentSize, c.MaxAttachmentSize),
	)
}

func (c *command) directory() directory.Directory {
	if c.DirectoryURL == "" {
		return directory.NewStatic(c.Organizations, c.Products)
	}
	return directory.NewHTTP(shared.MustParseURL(c.DirectoryURL), &shared.HTTPRequester{
		Client: &http.Client{Transport: authforwarder.AuthRoundTripper{}, Timeout: directoryTimeout},
	})
}

func (c *command) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logging.Extract(ctx)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logger),
			grpclogging.UnaryServerInterceptor(logging.InterceptorLogger(logger)),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(logger),
			grpclogging.StreamServerInterceptor(logging.InterceptorLogger(logger)),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	var lc net.ListenConfig
	grpcListener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", c.ListenAddr, c.GRPCPort))
	if err != nil {
		return fmt.Errorf("could not listen on gRPC port: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gRPC health service", "listenAddr", c.ListenAddr, "port", c.GRPCPort)
		return grpcServer.Serve(grpcListener)
	})

	provider, err := OpenStorage(ctx, c.StorageConfig)
	if err != nil {
		grpcServer.Stop()
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Error("Could not close storage", "err", err)
		}
	}()

	engine := statemachine.New(provider,
		statemachine.WithWorkers(c.Workers),
		statemachine.WithChildTimeout(c.ChildTimeout),
		statemachine.WithMaxAttachmentSize(c.MaxAttachmentSize),
		statemachine.WithRequireExpectedDate(c.RequireExpectedDate),
	)
	routes := api.GetRoutes(engine, details.New(provider, c.directory()), provider, c.MaxAttachmentSize)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", alice.New(
		sloghttp.Recovery,
		sloghttp.New(logger),
		logging.NewMiddleware(logger),
		authforwarder.HTTPMiddleware,
		auth.ActorInjector,
		contentTypeMiddleware,
	).Then(routes))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", c.ListenAddr, c.Port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return logging.Inject(context.Background(), logger) },
	}
	g.Go(func() error {
		logger.Info("Starting HTTP API", "listenAddr", c.ListenAddr, "port", c.Port,
			"backend", c.PersistenceBackend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
