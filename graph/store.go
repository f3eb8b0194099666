package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/storage"
)

// Backend is the subset of storage.Backend (or storage/tier.Tier,
// which satisfies the same shape) the graph projection needs.
// Declared locally so this package depends on behavior, not on which
// concrete tier sits underneath.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Delete(ctx context.Context, key []byte) error
	Scan(ctx context.Context, prefix []byte) (storage.Iterator, error)
}

// Store is the L2 graph projection: vertex/edge CRUD and secondary
// index maintenance layered over a key-value Backend. Per-property
// lookup views are kept alongside the primary record and updated on
// every write.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// wireVertex/wireEdge are the JSON-on-the-wire representations stored
// alongside the content-addressed key; JSON is adequate here because
// it is never hashed (the CID is computed by Vertex.CID/Edge.CID
// before storage, over the canonical encoder, not over this
// serialization).
type wireVertex struct {
	Label      string                 `json:"label"`
	Properties map[string]interface{} `json:"properties"`
}

type wireEdge struct {
	Label      string                 `json:"label"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Properties map[string]interface{} `json:"properties"`
}

// PutVertex writes v under its CID-derived key and maintains secondary
// indexes for each indexable property. Overwriting an existing vertex
// first removes its stale index entries.
func (s *Store) PutVertex(ctx context.Context, v Vertex) error {
	if v.ID == "" {
		v.ID = v.CID().String()
	}
	if old, ok, err := s.GetVertex(ctx, v.ID); err == nil && ok {
		s.removeIndexEntries(ctx, old.ID, old.Properties)
	}

	data, err := encodeVertex(v)
	if err != nil {
		return common.Wrap(common.KindStorage, "put-vertex", err)
	}
	if err := s.backend.Put(ctx, storage.VertexKey(v.ID), data); err != nil {
		return common.Wrap(common.KindStorage, "put-vertex", err)
	}
	return s.writeIndexEntries(ctx, v.ID, v.Properties)
}

func (s *Store) GetVertex(ctx context.Context, id string) (Vertex, bool, error) {
	data, ok, err := s.backend.Get(ctx, storage.VertexKey(id))
	if err != nil {
		return Vertex{}, false, common.Wrap(common.KindStorage, "get-vertex", err)
	}
	if !ok {
		return Vertex{}, false, nil
	}
	v, err := decodeVertex(id, data)
	if err != nil {
		return Vertex{}, false, common.Wrap(common.KindStorage, "get-vertex", err)
	}
	return v, true, nil
}

func (s *Store) DeleteVertex(ctx context.Context, id string) error {
	v, ok, err := s.GetVertex(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.removeIndexEntries(ctx, id, v.Properties)
	if err := s.backend.Delete(ctx, storage.VertexKey(id)); err != nil {
		return common.Wrap(common.KindStorage, "delete-vertex", err)
	}
	return nil
}

// PutEdge writes e under its CID-derived key. Both endpoints must
// already exist; dangling edges are rejected before anything is
// written.
func (s *Store) PutEdge(ctx context.Context, e Edge) error {
	if e.ID == "" {
		e.ID = e.CID().String()
	}
	for _, endpoint := range []string{e.From, e.To} {
		_, ok, err := s.GetVertex(ctx, endpoint)
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.KindStorage, "put-edge",
				fmt.Errorf("edge %s references missing vertex %s", e.ID, endpoint))
		}
	}
	data, err := encodeEdge(e)
	if err != nil {
		return common.Wrap(common.KindStorage, "put-edge", err)
	}
	if err := s.backend.Put(ctx, storage.EdgeKey(e.ID), data); err != nil {
		return common.Wrap(common.KindStorage, "put-edge", err)
	}
	return nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (Edge, bool, error) {
	data, ok, err := s.backend.Get(ctx, storage.EdgeKey(id))
	if err != nil {
		return Edge{}, false, common.Wrap(common.KindStorage, "get-edge", err)
	}
	if !ok {
		return Edge{}, false, nil
	}
	e, err := decodeEdge(id, data)
	if err != nil {
		return Edge{}, false, common.Wrap(common.KindStorage, "get-edge", err)
	}
	return e, true, nil
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, storage.EdgeKey(id)); err != nil {
		return common.Wrap(common.KindStorage, "delete-edge", err)
	}
	return nil
}

// ScanVertices returns every vertex in the store. Callers needing a
// label filter apply it themselves; this layer does not special-case
// labels beyond what the index already covers.
func (s *Store) ScanVertices(ctx context.Context) ([]Vertex, error) {
	it, err := s.backend.Scan(ctx, []byte(storage.TagVertex))
	if err != nil {
		return nil, common.Wrap(common.KindStorage, "scan-vertices", err)
	}
	defer it.Close()

	var out []Vertex
	for it.Next() {
		e := it.Entry()
		id := string(e.Key[len(storage.TagVertex):])
		v, err := decodeVertex(id, e.Value)
		if err != nil {
			return nil, common.Wrap(common.KindStorage, "scan-vertices", err)
		}
		out = append(out, v)
	}
	return out, it.Err()
}

func (s *Store) ScanEdges(ctx context.Context) ([]Edge, error) {
	it, err := s.backend.Scan(ctx, []byte(storage.TagEdge))
	if err != nil {
		return nil, common.Wrap(common.KindStorage, "scan-edges", err)
	}
	defer it.Close()

	var out []Edge
	for it.Next() {
		e := it.Entry()
		id := string(e.Key[len(storage.TagEdge):])
		edge, err := decodeEdge(id, e.Value)
		if err != nil {
			return nil, common.Wrap(common.KindStorage, "scan-edges", err)
		}
		out = append(out, edge)
	}
	return out, it.Err()
}

// Expand returns the edges leaving (outgoing) or entering (incoming)
// vertex id, filtered to label if non-empty. Adjacency uses a full
// edge scan; a from/to secondary index can be added if traversal
// profiling shows the scan dominating.
func (s *Store) Expand(ctx context.Context, vertexID string, outgoing bool, label string) ([]Edge, error) {
	all, err := s.ScanEdges(ctx)
	if err != nil {
		return nil, err
	}
	var out []Edge
	for _, e := range all {
		endpoint := e.To
		if outgoing {
			endpoint = e.From
		} else {
			endpoint = e.To
		}
		match := e.From == vertexID
		if !outgoing {
			match = e.To == vertexID
		}
		_ = endpoint
		if match && (label == "" || e.Label == label) {
			out = append(out, e)
		}
	}
	return out, nil
}

func encodeVertex(v Vertex) ([]byte, error) {
	return json.Marshal(wireVertex{Label: v.Label, Properties: toWireProps(v.Properties)})
}

func decodeVertex(id string, data []byte) (Vertex, error) {
	var w wireVertex
	if err := json.Unmarshal(data, &w); err != nil {
		return Vertex{}, err
	}
	return Vertex{ID: id, Label: w.Label, Properties: fromWireProps(w.Properties)}, nil
}

func encodeEdge(e Edge) ([]byte, error) {
	return json.Marshal(wireEdge{Label: e.Label, From: e.From, To: e.To, Properties: toWireProps(e.Properties)})
}

func decodeEdge(id string, data []byte) (Edge, error) {
	var w wireEdge
	if err := json.Unmarshal(data, &w); err != nil {
		return Edge{}, err
	}
	return Edge{ID: id, Label: w.Label, From: w.From, To: w.To, Properties: fromWireProps(w.Properties)}, nil
}
