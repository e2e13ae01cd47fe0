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

// Package source provides collection sources for the aggregation pipeline.
//
// Sources are exposed as iterators; ReadAll drains any of them into a collection.
package source

import (
	"go.uber.org/zap"

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// BatchSize is the number of documents ReadAll fetches from the iterator at once.
const BatchSize = 10

// ReadAll reads all documents from the iterator in batches of BatchSize.
//
// Iterator is always closed.
func ReadAll(iter iterator.Interface[int, *types.Document], l *zap.Logger) ([]*types.Document, error) {
	defer iter.Close()

	if l == nil {
		l = zap.NewNop()
	}

	var res []*types.Document

	for batches := 1; ; batches++ {
		batch, err := iterator.ConsumeValuesN(iter, BatchSize)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		res = append(res, batch...)

		if len(batch) < BatchSize {
			l.Debug("Source read", zap.Int("documents", len(res)), zap.Int("batches", batches))
			return res, nil
		}
	}
}
