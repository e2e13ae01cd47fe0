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

// Package lazyerrors annotates internal errors with the location that produced them.
//
// It is used for errors that are not expected to be handled by callers
// other than by returning or reporting them; pipeline errors meant for callers
// live in the aggerrors package.
package lazyerrors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// located is an error annotated with the caller's location.
type located struct {
	err   error
	frame runtime.Frame
}

// Error implements error interface.
func (e *located) Error() string {
	if e.frame.File == "" {
		return "[unknown] " + e.err.Error()
	}

	_, file := filepath.Split(e.frame.File)
	loc := file + ":" + strconv.Itoa(e.frame.Line)

	if fn := e.frame.Function; fn != "" {
		loc += " " + fn[strings.LastIndex(fn, "/")+1:]
	}

	return "[" + loc + "] " + e.err.Error()
}

// Unwrap returns the annotated error.
func (e *located) Unwrap() error {
	return e.err
}

// caller returns the frame of the function that called one of the package functions.
func caller() runtime.Frame {
	pc := make([]uintptr, 1)

	// skip runtime.Callers, caller, and package function
	if runtime.Callers(3, pc) == 0 {
		return runtime.Frame{}
	}

	f, _ := runtime.CallersFrames(pc).Next()

	return f
}

// New returns a new error with the given text, annotated with the caller's location.
func New(s string) error {
	return &located{
		err:   errors.New(s),
		frame: caller(),
	}
}

// Error annotates err with the caller's location. err must not be nil.
func Error(err error) error {
	if err == nil {
		panic("err is nil")
	}

	return &located{
		err:   err,
		frame: caller(),
	}
}

// Errorf formats an error like fmt.Errorf and annotates it with the caller's location.
func Errorf(format string, a ...any) error {
	return &located{
		err:   fmt.Errorf(format, a...),
		frame: caller(),
	}
}

// UnwrapAll returns the innermost error of err's chain, or nil if err is nil.
func UnwrapAll(err error) error {
	if err == nil {
		return nil
	}

	for {
		e := errors.Unwrap(err)
		if e == nil {
			return err
		}

		err = e
	}
}
