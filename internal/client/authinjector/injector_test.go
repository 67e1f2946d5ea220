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

package authinjector_test

import (
	"context"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/authinjector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestUnaryInterceptor(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		val  string
		want []string
	}{
		{"set", "Bearer abc", []string{"Bearer abc"}},
		{"empty", "", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
				md, _ := metadata.FromOutgoingContext(ctx)
				got = md.Get("authorization")
				return nil
			}
			err := authinjector.InjectUnaryAuthInterceptor(tc.val)(context.Background(), "/m", nil, nil, nil, invoker)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
