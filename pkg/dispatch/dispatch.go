package dispatch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/adapter"
	"github.com/smilemakc/toolflow/pkg/adapter/builtin"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/operator"
	"github.com/smilemakc/toolflow/pkg/render"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

// Dispatcher maps a workflow.Node to the concrete adapter or operator
// invocation that executes it, per spec.md §4.5.
type Dispatcher struct {
	Store     *artifact.Store
	Adapters  map[workflow.NodeKind]adapter.Adapter
	PetScan   *builtin.PetScan
	Renderer  render.Renderer
	Publisher render.Publisher
}

// Dispatch runs node against the given ordered input artifacts (already
// resolved from the node's incoming edges, in TargetSlot order) and
// returns the artifact details the run's node status records.
func (d *Dispatcher) Dispatch(ctx context.Context, node workflow.Node, inputs []uuid.UUID) (artifact.Details, error) {
	switch {
	case node.Kind == workflow.KindGenerator:
		return d.dispatchGenerator(ctx, inputs)
	case node.Kind.IsAdapterKind():
		return d.dispatchAdapter(ctx, node)
	case node.Kind.IsTransformKind():
		return d.dispatchTransform(ctx, node, inputs)
	default:
		return artifact.Details{}, fmt.Errorf("%w: unknown node kind %q", toolflowerr.ErrBadParameter, node.Kind)
	}
}

func (d *Dispatcher) dispatchAdapter(ctx context.Context, node workflow.Node) (artifact.Details, error) {
	a, ok := d.Adapters[node.Kind]
	if !ok {
		return artifact.Details{}, fmt.Errorf("%w: no adapter wired for kind %q", toolflowerr.ErrBadParameter, node.Kind)
	}

	spec, err := sourceSpecFor(node)
	if err != nil {
		return artifact.Details{}, err
	}

	out, err := d.Store.CreateOutput()
	if err != nil {
		return artifact.Details{}, err
	}
	defer out.Close()

	if err := a.Fetch(ctx, spec, node.HeaderMapping, out); err != nil {
		return artifact.Details{}, err
	}
	return out.Details(), nil
}

func sourceSpecFor(node workflow.Node) (adapter.SourceSpec, error) {
	switch node.Kind {
	case workflow.KindQuarryLatest, workflow.KindPetScan, workflow.KindPagePile, workflow.KindAListBuildingTool:
		id, err := paramU64(node.Parameters, "id")
		if err != nil {
			return adapter.SourceSpec{}, err
		}
		return adapter.SourceSpec{Kind: adapter.SourceNumericID, ID: int64(id)}, nil
	case workflow.KindSparql:
		q, err := paramString(node.Parameters, "query")
		if err != nil {
			return adapter.SourceSpec{}, err
		}
		return adapter.SourceSpec{Kind: adapter.SourceSparqlText, Text: q}, nil
	case workflow.KindUserEdits:
		u, err := paramString(node.Parameters, "url")
		if err != nil {
			return adapter.SourceSpec{}, err
		}
		return adapter.SourceSpec{Kind: adapter.SourceURL, Text: u}, nil
	case workflow.KindWdFist:
		wiki, err := paramString(node.Parameters, "wiki")
		if err != nil {
			return adapter.SourceSpec{}, err
		}
		qid, err := paramString(node.Parameters, "qid")
		if err != nil {
			return adapter.SourceSpec{}, err
		}
		return adapter.SourceSpec{Kind: adapter.SourceWikiQID, Wiki: wiki, QID: qid}, nil
	default:
		return adapter.SourceSpec{}, fmt.Errorf("%w: node kind %q has no source spec shape", toolflowerr.ErrBadParameter, node.Kind)
	}
}

func (d *Dispatcher) dispatchTransform(ctx context.Context, node workflow.Node, inputs []uuid.UUID) (artifact.Details, error) {
	switch node.Kind {
	case workflow.KindJoin:
		key, err := paramString(node.Parameters, "key")
		if err != nil {
			return artifact.Details{}, err
		}
		return operator.Join(ctx, d.Store, inputs, key)

	case workflow.KindFilter:
		if len(inputs) == 0 {
			return artifact.Details{}, toolflowerr.ErrNoInputs
		}
		key, err := paramString(node.Parameters, "key")
		if err != nil {
			return artifact.Details{}, err
		}
		opRaw, err := paramString(node.Parameters, "operator")
		if err != nil {
			return artifact.Details{}, err
		}
		value, err := paramString(node.Parameters, "value")
		if err != nil {
			return artifact.Details{}, err
		}
		removeMatching, err := paramBool(node.Parameters, "remove_matching")
		if err != nil {
			return artifact.Details{}, err
		}
		return operator.Filter(ctx, d.Store, inputs[0], operator.FilterParams{
			Key:            key,
			Subkey:         optionalString(node.Parameters, "subkey"),
			Operator:       operator.FilterOperator(opRaw),
			Value:          value,
			RemoveMatching: removeMatching,
		})

	case workflow.KindFilterSort:
		if len(inputs) == 0 {
			return artifact.Details{}, toolflowerr.ErrNoInputs
		}
		key, err := paramString(node.Parameters, "key")
		if err != nil {
			return artifact.Details{}, err
		}
		reverse, err := paramBool(node.Parameters, "reverse")
		if err != nil {
			return artifact.Details{}, err
		}
		return operator.FilterSort(ctx, d.Store, inputs[0], key, reverse)

	case workflow.KindFilterPetScan:
		if len(inputs) == 0 {
			return artifact.Details{}, toolflowerr.ErrNoInputs
		}
		key, err := paramString(node.Parameters, "key")
		if err != nil {
			return artifact.Details{}, err
		}
		psid, err := paramU64(node.Parameters, "psid")
		if err != nil {
			return artifact.Details{}, err
		}
		return operator.FilterPetScan(ctx, d.Store, d.PetScan, inputs[0], operator.FilterPetScanParams{Key: key, PSID: int64(psid)})

	default:
		return artifact.Details{}, fmt.Errorf("%w: unknown transform kind %q", toolflowerr.ErrBadParameter, node.Kind)
	}
}

// dispatchGenerator renders the single input artifact and publishes it;
// per spec.md §4.5 it produces no artifact file, returning the invalid
// sentinel.
func (d *Dispatcher) dispatchGenerator(ctx context.Context, inputs []uuid.UUID) (artifact.Details, error) {
	if len(inputs) != 1 {
		return artifact.Details{}, toolflowerr.ErrSingleInput
	}

	r, err := d.Store.OpenInput(inputs[0])
	if err != nil {
		return artifact.Details{}, err
	}
	header, rows, err := artifact.ReadAll(r)
	r.Close()
	if err != nil {
		return artifact.Details{}, err
	}

	var buf bytes.Buffer
	if err := d.Renderer.Render(header, rows, &buf); err != nil {
		return artifact.Details{}, err
	}
	if err := d.Publisher.Publish(ctx, inputs[0].String(), buf.String()); err != nil {
		return artifact.Details{}, err
	}
	return artifact.InvalidDetails(), nil
}
