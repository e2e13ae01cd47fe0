// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		level    zapcore.Level
		uuid     string
		contains []string
		excludes []string
	}{
		"Info": {
			level:    zapcore.InfoLevel,
			contains: []string{"INFO", "info message", `{"stage": "$match"}`},
			excludes: []string{"debug message", "uuid"},
		},
		"DebugUUID": {
			level:    zapcore.DebugLevel,
			uuid:     "2f0f6b35-0d0c-4b0b-b8a2-7d6c1c2c3a4e",
			contains: []string{"DEBUG", "debug message", "info message", "2f0f6b35-0d0c-4b0b-b8a2-7d6c1c2c3a4e"},
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "log.txt")

			logger, err := newConfig(tc.level, tc.uuid, out).Build()
			require.NoError(t, err)

			logger.Debug("debug message")
			logger.Info("info message", zap.String("stage", "$match"))
			_ = logger.Sync()

			b, err := os.ReadFile(out)
			require.NoError(t, err)

			for _, s := range tc.contains {
				assert.Contains(t, string(b), s)
			}

			for _, s := range tc.excludes {
				assert.NotContains(t, string(b), s)
			}
		})
	}
}
