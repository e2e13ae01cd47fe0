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


// Package version provides information about the aggregator build.
package version

import (
	"runtime/debug"
	"strconv"
)

// version may be set with -ldflags "-X github.com/FerretDB/aggregator/internal/util/version.version=...".
var version = "devel"

// Info provides details about the current build.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
}

// info is filled once at package initialization.
var info *Info

// Get returns current build's info.
//
// It returns a shared instance without any synchronization.
// If caller needs to modify the instance, it should make sure there is no concurrent accesses.
func Get() *Info {
	return info
}

func init() {
	info = &Info{
		Version: version,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	info.GoVersion = buildInfo.GoVersion

	if info.Version == "devel" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		info.Version = buildInfo.Main.Version
	}

	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Dirty, _ = strconv.ParseBool(s.Value)
		}
	}
}
