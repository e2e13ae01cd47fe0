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

// Package aggerrors provides errors returned by aggregation pipelines.
//
// Every error that aborts an aggregation is a *PipelineError carrying an ErrorCode,
// the argument (stage, operator, function tag, or field) that caused it,
// and the index of the stage that failed.
package aggerrors

import (
	"errors"
	"fmt"
)

// ErrorCode represents pipeline error code.
type ErrorCode int32

const (
	errUnset = ErrorCode(0) // Unset

	// ErrUnknownStage indicates that a stage descriptor carries zero, several, or unrecognized stage tags.
	ErrUnknownStage = ErrorCode(1) // UnknownStage

	// ErrUnknownOperator indicates unsupported $match comparison operator.
	ErrUnknownOperator = ErrorCode(2) // UnknownOperator

	// ErrUnknownAggregateFunction indicates unsupported $group aggregate function.
	ErrUnknownAggregateFunction = ErrorCode(3) // UnknownAggregateFunction

	// ErrInvalidAggregateExpression indicates that $group aggregate expression
	// is neither a bare function tag nor a single-key function object.
	ErrInvalidAggregateExpression = ErrorCode(4) // InvalidAggregateExpression

	// ErrUnknownProjectionOperator indicates unsupported $project operator.
	ErrUnknownProjectionOperator = ErrorCode(5) // UnknownProjectionOperator

	// ErrEmptyAggregation indicates that $min or $max has no values to operate on.
	ErrEmptyAggregation = ErrorCode(6) // EmptyAggregation

	// ErrTypeMismatch indicates non-numeric arithmetic or cross-type ordering comparison.
	ErrTypeMismatch = ErrorCode(7) // TypeMismatch

	// ErrInvalidStageSpec indicates a malformed stage body, for example, a non-object $match filter.
	ErrInvalidStageSpec = ErrorCode(8) // InvalidStageSpec

	// ErrDivideByZero indicates $divide with zero divisor.
	ErrDivideByZero = ErrorCode(9) // DivideByZero
)

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	switch c {
	case errUnset:
		return "Unset"
	case ErrUnknownStage:
		return "UnknownStage"
	case ErrUnknownOperator:
		return "UnknownOperator"
	case ErrUnknownAggregateFunction:
		return "UnknownAggregateFunction"
	case ErrInvalidAggregateExpression:
		return "InvalidAggregateExpression"
	case ErrUnknownProjectionOperator:
		return "UnknownProjectionOperator"
	case ErrEmptyAggregation:
		return "EmptyAggregation"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrInvalidStageSpec:
		return "InvalidStageSpec"
	case ErrDivideByZero:
		return "DivideByZero"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int32(c))
	}
}

// PipelineError represents an error that aborted the aggregation.
type PipelineError struct {
	err      error
	argument string
	stage    *StageInfo
	code     ErrorCode
}

// StageInfo describes the stage that failed.
type StageInfo struct {
	Name  string // stage tag such as "$group"; empty if unknown
	Index int    // zero-based position in the pipeline
}

// There should not be NewPipelineError function variant that accepts printf-like format specifiers.
// Let the caller do safe formatting.

// NewPipelineError creates a new pipeline error.
//
// Code shouldn't be zero, err can't be nil.
func NewPipelineError(code ErrorCode, err error) error {
	if err == nil {
		panic("err is nil")
	}

	return &PipelineError{
		code: code,
		err:  err,
	}
}

// NewPipelineErrorMsg is variant for NewPipelineError with error string.
func NewPipelineErrorMsg(code ErrorCode, msg string) error {
	return NewPipelineError(code, errors.New(msg))
}

// NewPipelineErrorMsgWithArgument creates a new pipeline error with an argument that caused the error.
func NewPipelineErrorMsgWithArgument(code ErrorCode, msg string, argument string) error {
	return &PipelineError{
		err:      errors.New(msg),
		code:     code,
		argument: argument,
	}
}

// Error implements error interface.
func (e *PipelineError) Error() string {
	if e.stage == nil {
		return fmt.Sprintf("%[1]s (%[1]d): %[2]v", e.code, e.err)
	}

	if e.stage.Name == "" {
		return fmt.Sprintf("%[1]s (%[1]d): stage %[2]d: %[3]v", e.code, e.stage.Index, e.err)
	}

	return fmt.Sprintf("%[1]s (%[1]d): stage %[2]d (%[3]s): %[4]v", e.code, e.stage.Index, e.stage.Name, e.err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.err
}

// Code returns the error code.
func (e *PipelineError) Code() ErrorCode {
	return e.code
}

// Argument returns the stage, operator, function tag, or field that caused the error.
// It may be empty.
func (e *PipelineError) Argument() string {
	return e.argument
}

// Stage returns information about the failed stage, or nil if the error was not attributed to a stage.
func (e *PipelineError) Stage() *StageInfo {
	return e.stage
}

// WithStage attributes err to the stage at the given index.
//
// *PipelineError (possibly wrapped) is copied with stage information set,
// unless it is already attributed; any other error is returned as-is.
func WithStage(err error, index int, name string) error {
	if err == nil {
		panic("err is nil")
	}

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.stage != nil {
		return err
	}

	res := *pe
	res.stage = &StageInfo{
		Name:  name,
		Index: index,
	}

	return &res
}

// Is returns true if err is a (possibly wrapped) *PipelineError with the given code.
func Is(err error, code ErrorCode) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}

	return pe.code == code
}

// check interfaces
var (
	_ error = (*PipelineError)(nil)
)
