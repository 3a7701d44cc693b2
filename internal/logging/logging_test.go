// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	conf := SetDefaults()
	assert.Equal(t, "stdout", conf.Output)
	assert.Equal(t, "INFO", conf.Level)
	require.NoError(t, conf.Validate())
}

func TestValidate_FileOutputRequiresPath(t *testing.T) {
	conf := &Conf{Output: "file"}
	err := conf.Validate()
	assert.Error(t, err)
}

func TestValidate_FileOutputFillsDefaults(t *testing.T) {
	conf := &Conf{Output: "file", Path: "./logs"}
	require.NoError(t, conf.Validate())
	assert.Equal(t, 100, conf.RotateSize)
	assert.Equal(t, 10, conf.RotateNum)
	assert.Equal(t, 7, conf.MaxAgeDays)
}

func TestInit_Stdout(t *testing.T) {
	conf := SetDefaults()
	l, err := Init(conf)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.NotNil(t, L())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{
		"debug": true, "INFO": true, "warn": true, "ERROR": true, "bogus": true,
	}
	for level := range cases {
		// parseLevel never panics and always returns a usable level.
		_ = parseLevel(level)
	}
}
