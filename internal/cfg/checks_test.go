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

package cfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConnectAddr(t *testing.T) {
	t.Parallel()

	assert.NoError(t, cfg.CheckConnectAddr("127.0.0.1:8081"))
	assert.NoError(t, cfg.CheckConnectAddr("quotes.internal:443"))
	assert.Error(t, cfg.CheckConnectAddr("127.0.0.1"))
	assert.Error(t, cfg.CheckConnectAddr(":8081"))
	assert.Error(t, cfg.CheckConnectAddr("host:http"))
	assert.Error(t, cfg.CheckConnectAddr("host:70000"))
}

func TestCheckURL(t *testing.T) {
	t.Parallel()

	u, err := cfg.CheckURL("https://dome.example/api")
	require.NoError(t, err)
	assert.Equal(t, "dome.example", u.Host)
	_, err = cfg.CheckURL("dome.example")
	assert.Error(t, err)
	_, err = cfg.CheckURL("ftp://dome.example")
	assert.Error(t, err)
}

func TestCheckFilesExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))

	assert.NoError(t, cfg.CheckFilesExist(f))
	assert.Error(t, cfg.CheckFilesExist(f, filepath.Join(dir, "missing.pem")))
	assert.Error(t, cfg.CheckFilesExist(dir))
}

func TestCheckPositive(t *testing.T) {
	t.Parallel()

	assert.NoError(t, cfg.CheckPositive("engine.workers", 8))
	assert.Error(t, cfg.CheckPositive("engine.childTimeout", time.Duration(0)))
	assert.Error(t, cfg.CheckPositive("engine.maxAttachmentSize", int64(-1)))
}
