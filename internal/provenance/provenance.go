// Package provenance records the lineage of derived data items: which
// operation produced each item, and from which source items. Tracing is
// purely additive instrumentation; a disabled tracer changes nothing in
// the behavior of the components it observes.
package provenance

import (
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/operation"
)

// ErrUnknownItem reports a lineage lookup for an item the tracer never
// saw.
var ErrUnknownItem = eris.New("provenance: unknown data item")

// Prov is the lineage record of one data item. OpDesc is nil for stub
// records: items only ever seen as sources of other items.
type Prov struct {
	ItemID     string
	OpDesc     *operation.Description
	SourceIDs  []string
	DerivedIDs []string
}

// Tracer accumulates lineage records for one run. Pipelines run their
// steps against a sub-tracer and re-expose outputs on the parent under
// their own description, so nesting stays invisible to the caller while
// fine-grained lineage remains reachable through SubTracer.
//
// Because pipeline execution is sequential and operations only see data
// handed to them, the recorded graph is acyclic and consistent with
// execution order.
type Tracer struct {
	provs      map[string]*Prov
	order      []string
	subTracers map[string]*Tracer
}

// New creates an empty tracer.
func New() *Tracer {
	return &Tracer{
		provs:      make(map[string]*Prov),
		subTracers: make(map[string]*Tracer),
	}
}

func (t *Tracer) prov(itemID string) *Prov {
	p, ok := t.provs[itemID]
	if !ok {
		p = &Prov{ItemID: itemID}
		t.provs[itemID] = p
		t.order = append(t.order, itemID)
	}
	return p
}

// AddProv records that desc produced itemID from sourceIDs. Sources not
// yet known get stub records so that derived links always resolve.
func (t *Tracer) AddProv(itemID string, desc operation.Description, sourceIDs []string) {
	p := t.prov(itemID)
	p.OpDesc = &desc
	p.SourceIDs = append(p.SourceIDs, sourceIDs...)
	for _, src := range sourceIDs {
		sp := t.prov(src)
		sp.DerivedIDs = append(sp.DerivedIDs, itemID)
	}
}

// HasProv reports whether the tracer holds a record for itemID.
func (t *Tracer) HasProv(itemID string) bool {
	_, ok := t.provs[itemID]
	return ok
}

// GetProv returns the lineage record of itemID, or ErrUnknownItem.
func (t *Tracer) GetProv(itemID string) (*Prov, error) {
	p, ok := t.provs[itemID]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownItem, "uid %s", itemID)
	}
	return p, nil
}

// AllProvs returns every record in the order items were first seen.
func (t *Tracer) AllProvs() []*Prov {
	out := make([]*Prov, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.provs[id])
	}
	return out
}

// AddProvFromSubTracer records, for each item produced by a nested
// pipeline, a lineage entry under the pipeline's own description. The
// sources of each entry are the items that entered the pipeline from
// outside, found by walking the sub-tracer's records back to items it
// holds no producing operation for. The sub-tracer stays reachable for
// drill-down through SubTracer.
func (t *Tracer) AddProvFromSubTracer(itemIDs []string, desc operation.Description, sub *Tracer) {
	for _, itemID := range itemIDs {
		t.AddProv(itemID, desc, sub.externalSources(itemID))
	}
	t.subTracers[desc.UID] = sub
}

// externalSources walks the lineage of itemID down to the items that
// were fed to the traced run rather than created by it.
func (t *Tracer) externalSources(itemID string) []string {
	var out []string
	seen := make(map[string]struct{})
	var visit func(id string)
	visit = func(id string) {
		p, ok := t.provs[id]
		if !ok || p.OpDesc == nil {
			// Entered from outside: no producing operation recorded.
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
			return
		}
		for _, src := range p.SourceIDs {
			visit(src)
		}
	}
	p, ok := t.provs[itemID]
	if !ok {
		return nil
	}
	if p.OpDesc == nil {
		return nil
	}
	for _, src := range p.SourceIDs {
		visit(src)
	}
	return out
}

// SubTracer returns the nested tracer recorded under a pipeline
// operation uid, if any.
func (t *Tracer) SubTracer(opUID string) (*Tracer, bool) {
	sub, ok := t.subTracers[opUID]
	return sub, ok
}
