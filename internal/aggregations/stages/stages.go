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

// Package stages provides aggregation stages.
//
// A stage is described by a Descriptor: a closed set of variants,
// one per supported stage. NewStage compiles a descriptor into an aggregations.Stage.
package stages

import (
	"fmt"
	"strings"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// Descriptor describes a single pipeline stage.
//
// It is implemented only by Match, Group, Project and Sort.
type Descriptor interface {
	// Name returns the stage name, such as "$match".
	Name() string

	descriptor() // seal
}

// Match describes $match stage.
//
//	{ $match: { <field>: <literal>, <field>: { <operator>: <value>, ... }, ... } }
type Match struct {
	Filter *types.Document
}

// Group describes $group stage.
//
//	{ $group: { _id: "$<key field>", <output field>: { <function>: "$<field>" | 1 }, ... } }
type Group struct {
	Spec *types.Document
}

// Project describes $project stage.
//
//	{ $project: { <field>: 1 | 0 | "$<source field>" | { <operator>: [<field>, <field>] }, ... } }
type Project struct {
	Spec *types.Document
}

// Sort describes $sort stage.
//
//	{ $sort: { <field>: 1 | -1, ... } }
type Sort struct {
	Spec *types.Document
}

// Name implements Descriptor interface.
func (Match) Name() string { return aggregations.StageMatch }

// Name implements Descriptor interface.
func (Group) Name() string { return aggregations.StageGroup }

// Name implements Descriptor interface.
func (Project) Name() string { return aggregations.StageProject }

// Name implements Descriptor interface.
func (Sort) Name() string { return aggregations.StageSort }

func (Match) descriptor()   {}
func (Group) descriptor()   {}
func (Project) descriptor() {}
func (Sort) descriptor()    {}

// newDescriptorFunc is a type for a function that wraps stage body into a descriptor.
type newDescriptorFunc func(body *types.Document) Descriptor

// descriptors maps all supported stages.
var descriptors = map[string]newDescriptorFunc{
	// sorted alphabetically
	aggregations.StageGroup:   func(body *types.Document) Descriptor { return Group{Spec: body} },
	aggregations.StageMatch:   func(body *types.Document) Descriptor { return Match{Filter: body} },
	aggregations.StageProject: func(body *types.Document) Descriptor { return Project{Spec: body} },
	aggregations.StageSort:    func(body *types.Document) Descriptor { return Sort{Spec: body} },
	// please keep sorted alphabetically
}

// ParseDescriptor returns the descriptor for the { <stage name>: <body> } literal.
//
// It returns ErrUnknownStage error if the literal does not carry exactly one field,
// or if that field is not a supported stage name.
func ParseDescriptor(stage *types.Document) (Descriptor, error) {
	if stage.Len() != 1 {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrUnknownStage,
			fmt.Sprintf(
				"a pipeline stage must contain exactly one field, got %d: [%s]",
				stage.Len(), strings.Join(stage.Keys(), ", "),
			),
			strings.Join(stage.Keys(), ","),
		)
	}

	name := stage.Command()

	newDescriptor, ok := descriptors[name]
	if !ok {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrUnknownStage,
			fmt.Sprintf("unknown pipeline stage %q", name),
			name,
		)
	}

	body, ok := must.NotFail(stage.Get(name)).(*types.Document)
	if !ok {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			fmt.Sprintf("%s stage specification must be an object", name),
			name,
		)
	}

	return newDescriptor(body), nil
}

// NewStage compiles the descriptor into a stage.
// Malformed specifications are reported here, before any document is processed.
func NewStage(d Descriptor) (aggregations.Stage, error) {
	switch d := d.(type) {
	case Match:
		return newMatch(d)
	case Group:
		return newGroup(d)
	case Project:
		return newProject(d)
	case Sort:
		return newSort(d)
	default:
		panic(fmt.Sprintf("stages.NewStage: unexpected descriptor %T", d))
	}
}

// requireSpec returns an error if the stage specification is absent.
func requireSpec(name string, spec *types.Document) error {
	if spec != nil {
		return nil
	}

	return aggerrors.NewPipelineErrorMsgWithArgument(
		aggerrors.ErrInvalidStageSpec,
		fmt.Sprintf("%s stage specification must be an object", name),
		name,
	)
}

// check interfaces
var (
	_ Descriptor = Match{}
	_ Descriptor = Group{}
	_ Descriptor = Project{}
	_ Descriptor = Sort{}
)
