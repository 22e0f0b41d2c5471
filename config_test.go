/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsUnsafeByDefaultFalse(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Unsafe)
	assert.Equal(t, "+nst", cfg.DefaultChanMode)
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigRejectsParameterizedDefaultMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultChanMode = "+k"
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsUnrecognizedDefaultMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultChanMode = "+z"
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsNonLoopbackPlaintext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bindings = []BindingConfig{{Address: "0.0.0.0:6667"}}
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigAllowsNonLoopbackWhenUnsafe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unsafe = true
	cfg.Bindings = []BindingConfig{{Address: "0.0.0.0:6667"}}
	assert.NoError(t, validateConfig(cfg))
}

func TestLoadConfigSetsSourcePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ircd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: test.localdomain\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test.localdomain", cfg.Domain)
	assert.Equal(t, path, cfg.sourcePath)
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("127.0.0.1:6667"))
	assert.True(t, isLoopback("localhost:6667"))
	assert.False(t, isLoopback("8.8.8.8:6667"))
}
