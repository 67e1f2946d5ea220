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

// Package authinjector adds the configured authorization metadata to outgoing gRPC calls.
package authinjector

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func withAuth(ctx context.Context, val string) context.Context {
	if val == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", val)
}

// InjectUnaryAuthInterceptor sets `val` as the `authorization` metadata of unary calls.
func InjectUnaryAuthInterceptor(val string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		return invoker(withAuth(ctx, val), method, req, reply, cc, opts...)
	}
}

// InjectStreamAuthInterceptor is the streaming version of InjectUnaryAuthInterceptor.
func InjectStreamAuthInterceptor(val string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn,
		method string, streamer grpc.Streamer, opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(withAuth(ctx, val), desc, cc, method, opts...)
	}
}
