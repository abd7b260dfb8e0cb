// Package operator implements the transform operators (C4): Join,
// MergeUnique, Filter, FilterSort, FilterPetScan. Every operator reads one
// or more artifact inputs via pkg/artifact and produces one new artifact.
package operator

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/cell"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
)

// Store is the subset of artifact.Store the operators need: open inputs,
// stat their size, create one output.
type Store interface {
	OpenInput(id uuid.UUID) (*artifact.Reader, error)
	Size(id uuid.UUID) (int64, error)
	CreateOutput() (*artifact.Writer, error)
}

type sizedInput struct {
	id   uuid.UUID
	size int64
}

func sortInputsBySize(store Store, ids []uuid.UUID) ([]sizedInput, error) {
	sized := make([]sizedInput, len(ids))
	for i, id := range ids {
		size, err := store.Size(id)
		if err != nil {
			return nil, err
		}
		sized[i] = sizedInput{id: id, size: size}
	}
	for i := 1; i < len(sized); i++ {
		for j := i; j > 0 && sized[j].size < sized[j-1].size; j-- {
			sized[j], sized[j-1] = sized[j-1], sized[j]
		}
	}
	return sized, nil
}

// Join implements Inner-Join-On-Key: ≥2 inputs joined on a named key
// column, keeping only rows whose key was matched in every input.
func Join(ctx context.Context, store Store, ids []uuid.UUID, keyColumn string) (artifact.Details, error) {
	if len(ids) == 0 {
		return artifact.Details{}, toolflowerr.ErrNoInputs
	}
	if len(ids) == 1 {
		return artifact.Details{}, toolflowerr.ErrSingleInput
	}

	sized, err := sortInputsBySize(store, ids)
	if err != nil {
		return artifact.Details{}, err
	}

	baseReader, err := store.OpenInput(sized[0].id)
	if err != nil {
		return artifact.Details{}, err
	}
	baseHeader, baseRows, err := artifact.ReadAll(baseReader)
	baseReader.Close()
	if err != nil {
		return artifact.Details{}, err
	}

	baseKeyIdx := baseHeader.IndexOf(keyColumn)
	if baseKeyIdx < 0 {
		return artifact.Details{}, fmt.Errorf("%w: %q in base input", toolflowerr.ErrMissingKeyColumn, keyColumn)
	}

	key2row := make(map[string]int, len(baseRows))
	for i, row := range baseRows {
		k := row[baseKeyIdx].Key()
		if _, dup := key2row[k]; dup {
			return artifact.Details{}, fmt.Errorf("%w: %q", toolflowerr.ErrDuplicateKey, k)
		}
		key2row[k] = i
	}

	header := append(cell.DataHeader{}, baseHeader...)
	joinedByAll := make([]bool, len(baseRows))
	for i := range joinedByAll {
		joinedByAll[i] = true
	}

	for n, si := range sized[1:] {
		select {
		case <-ctx.Done():
			return artifact.Details{}, ctx.Err()
		default:
		}

		r, err := store.OpenInput(si.id)
		if err != nil {
			return artifact.Details{}, err
		}
		inHeader, err := r.Header()
		if err != nil {
			r.Close()
			return artifact.Details{}, err
		}
		keyIdx := inHeader.IndexOf(keyColumn)
		if keyIdx < 0 {
			r.Close()
			return artifact.Details{}, fmt.Errorf("%w: %q in input %d", toolflowerr.ErrMissingKeyColumn, keyColumn, n+1)
		}

		appended := make([]bool, len(baseRows))
		for {
			row, err := r.ReadRow()
			if err != nil {
				if err == io.EOF {
					break
				}
				r.Close()
				return artifact.Details{}, err
			}
			k := row[keyIdx].Key()
			idx, ok := key2row[k]
			if !ok {
				continue
			}
			for c, v := range row {
				if c == keyIdx {
					continue
				}
				baseRows[idx] = append(baseRows[idx], v)
			}
			appended[idx] = true
		}
		r.Close()

		for i, got := range appended {
			if !got {
				joinedByAll[i] = false
			}
		}

		for i, col := range inHeader {
			if i == keyIdx {
				continue
			}
			header = append(header, col)
		}
	}

	out, err := store.CreateOutput()
	if err != nil {
		return artifact.Details{}, err
	}
	defer out.Close()

	if err := out.WriteHeader(header); err != nil {
		return artifact.Details{}, err
	}
	for i, row := range baseRows {
		if !joinedByAll[i] {
			continue
		}
		if err := out.WriteRow(row); err != nil {
			return artifact.Details{}, err
		}
	}
	return out.Details(), nil
}

// MergeUnique implements Merge-Unique: all inputs must share an identical
// header; rows are emitted once per distinct derived key across all inputs,
// size-ascending.
func MergeUnique(ctx context.Context, store Store, ids []uuid.UUID, keyColumn string) (artifact.Details, error) {
	if len(ids) == 0 {
		return artifact.Details{}, toolflowerr.ErrNoInputs
	}
	if len(ids) == 1 {
		return artifact.Details{}, toolflowerr.ErrSingleInput
	}

	sized, err := sortInputsBySize(store, ids)
	if err != nil {
		return artifact.Details{}, err
	}

	var header cell.DataHeader
	out, err := store.CreateOutput()
	if err != nil {
		return artifact.Details{}, err
	}
	defer out.Close()

	seen := make(map[string]bool)
	for n, si := range sized {
		select {
		case <-ctx.Done():
			return artifact.Details{}, ctx.Err()
		default:
		}

		r, err := store.OpenInput(si.id)
		if err != nil {
			return artifact.Details{}, err
		}
		h, err := r.Header()
		if err != nil {
			r.Close()
			return artifact.Details{}, err
		}
		if n == 0 {
			header = h
			if err := out.WriteHeader(header); err != nil {
				r.Close()
				return artifact.Details{}, err
			}
		} else if !headerEqual(header, h) {
			r.Close()
			return artifact.Details{}, fmt.Errorf("%w: input %d header differs from first input", toolflowerr.ErrSchemaMismatch, n)
		}

		keyIdx := header.IndexOf(keyColumn)
		if keyIdx < 0 {
			r.Close()
			return artifact.Details{}, fmt.Errorf("%w: %q", toolflowerr.ErrMissingKeyColumn, keyColumn)
		}

		for {
			row, err := r.ReadRow()
			if err != nil {
				if err == io.EOF {
					break
				}
				r.Close()
				return artifact.Details{}, err
			}
			k := row[keyIdx].Key()
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			if err := out.WriteRow(row); err != nil {
				r.Close()
				return artifact.Details{}, err
			}
		}
		r.Close()
	}

	return out.Details(), nil
}

func headerEqual(a, b cell.DataHeader) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Kind.Tag != b[i].Kind.Tag {
			return false
		}
	}
	return true
}
