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

package aggerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError(t *testing.T) {
	t.Parallel()

	err := NewPipelineErrorMsgWithArgument(ErrUnknownOperator, `unknown operator: "$in"`, "$in")
	assert.EqualError(t, err, `UnknownOperator (2): unknown operator: "$in"`)
	assert.True(t, Is(err, ErrUnknownOperator))
	assert.False(t, Is(err, ErrUnknownStage))

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "$in", pe.Argument())
	assert.Nil(t, pe.Stage())

	staged := WithStage(fmt.Errorf("wrapped: %w", err), 2, "$match")
	assert.EqualError(t, staged, `UnknownOperator (2): stage 2 ($match): unknown operator: "$in"`)
	require.ErrorAs(t, staged, &pe)
	assert.Equal(t, &StageInfo{Name: "$match", Index: 2}, pe.Stage())
	assert.Equal(t, "$in", pe.Argument())

	assert.Same(t, staged, WithStage(staged, 3, "$sort"), "already attributed errors are kept")

	noName := WithStage(NewPipelineErrorMsg(ErrUnknownStage, "empty stage"), 0, "")
	assert.EqualError(t, noName, "UnknownStage (1): stage 0: empty stage")

	other := errors.New("other")
	assert.Same(t, other, WithStage(other, 0, "$sort"))
	assert.False(t, Is(other, ErrUnknownStage))
}

func TestErrorCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TypeMismatch", ErrTypeMismatch.String())
	assert.Equal(t, "EmptyAggregation", ErrEmptyAggregation.String())
	assert.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}
