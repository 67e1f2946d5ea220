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

package shared_test

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSFilesConfig(t *testing.T) {
	t.Parallel()

	config, err := shared.TLSFiles{}.Config()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	assert.Nil(t, config.RootCAs)
	assert.Empty(t, config.Certificates)

	dir := t.TempDir()
	_, err = shared.TLSFiles{CACert: filepath.Join(dir, "missing.pem")}.Config()
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))
	_, err = shared.TLSFiles{CACert: garbage}.Config()
	assert.ErrorContains(t, err, "no certificates found")

	// A certificate without its key is not presented.
	config, err = shared.TLSFiles{Cert: garbage}.Config()
	require.NoError(t, err)
	assert.Empty(t, config.Certificates)

	_, err = shared.TLSFiles{Cert: garbage, CertKey: garbage}.Config()
	assert.ErrorContains(t, err, "client certificate")
}
