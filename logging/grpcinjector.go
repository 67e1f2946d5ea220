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

package logging

import (
	"context"
	"log/slog"

	middleware "github.com/grpc-ecosystem/go-grpc-middleware/v2"
	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

// InterceptorLogger adapts a slog logger to the go-grpc-middleware logging interceptors. The
// logger in the call context is preferred, so labels added by the injector show up.
func InterceptorLogger(logger *slog.Logger) grpclogging.Logger {
	return grpclogging.LoggerFunc(func(ctx context.Context, lvl grpclogging.Level, msg string, fields ...any) {
		l, ok := ctx.Value(contextKey).(*slog.Logger)
		if !ok || l == nil {
			l = logger
		}
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func callLogger(ctx context.Context, logger *slog.Logger, method string) *slog.Logger {
	logger = logger.With("grpc_method", method)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		logger = logger.With("grpc_peer", p.Addr.String())
	}
	return logger
}

// UnaryServerInterceptor injects a logger labelled with the called method and the peer.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (any, error) {
		return handler(Inject(ctx, callLogger(ctx, logger, info.FullMethod)), req)
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streams, the health Watch call uses it.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler,
	) error {
		wrapped := middleware.WrapServerStream(ss)
		wrapped.WrappedContext = Inject(ss.Context(), callLogger(ss.Context(), logger, info.FullMethod))
		return handler(srv, wrapped)
	}
}
