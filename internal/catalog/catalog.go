// internal/catalog/catalog.go
//
// Immutable catalog of species and tree nodes, plus the placement evaluator.
//
// Responsibilities:
//   - Build a Catalog once from a Document, validating ids and coordinates.
//   - Report authoring problems (empty answer sets, dangling references) as
//     warnings instead of failing the load.
//   - Answer IsCorrect / EducationalNote in O(1) via prebuilt indexes.
//
// Nothing in this package mutates a Catalog after New returns. Accessors hand
// out copies so callers cannot reach the shared backing slices.

package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoSpecies        = errors.New("catalog: no species")
	ErrDuplicateSpecies = errors.New("catalog: duplicate species id")
	ErrDuplicateNode    = errors.New("catalog: duplicate node id")
	ErrBadPosition      = errors.New("catalog: node position out of range")
	ErrMissingID        = errors.New("catalog: missing id")
)

// Catalog is the read-only dataset a game session is built from.
type Catalog struct {
	title       string
	description string
	education   string
	scoring     Scoring
	tree        *Tree

	species    []Species
	nodes      []Node
	speciesIdx map[string]int
	nodeIdx    map[string]int
	answers    map[string]map[string]struct{} // node id → accepted species ids
	notes      map[string]map[string]string   // species id → node id → note
}

// New validates doc and builds a Catalog from it.
// The returned warnings describe content that loads but can never be
// satisfied or displayed; callers usually log them.
func New(doc Document) (*Catalog, []string, error) {
	if len(doc.Species) == 0 {
		return nil, nil, ErrNoSpecies
	}

	c := &Catalog{
		title:       doc.Title,
		description: doc.Description,
		education:   doc.EducationalContent,
		scoring:     DefaultScoring,
		speciesIdx:  make(map[string]int, len(doc.Species)),
		nodeIdx:     make(map[string]int, len(doc.Nodes)),
		answers:     make(map[string]map[string]struct{}, len(doc.Nodes)),
		notes:       make(map[string]map[string]string, len(doc.Notes)),
	}
	if doc.Scoring != nil {
		c.scoring = *doc.Scoring
	}
	if doc.Tree != nil {
		t := doc.Tree.clone()
		c.tree = &t
	}

	for _, s := range doc.Species {
		if s.ID == "" {
			return nil, nil, fmt.Errorf("species %q: %w", s.Name, ErrMissingID)
		}
		if _, dup := c.speciesIdx[s.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateSpecies, s.ID)
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		c.speciesIdx[s.ID] = len(c.species)
		c.species = append(c.species, s.clone())
	}

	var warnings []string
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, nil, fmt.Errorf("node %q: %w", n.Label, ErrMissingID)
		}
		if _, dup := c.nodeIdx[n.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		if !inRange(n.X) || !inRange(n.Y) {
			return nil, nil, fmt.Errorf("%w: node %s at (%g,%g)", ErrBadPosition, n.ID, n.X, n.Y)
		}
		if n.Label == "" {
			n.Label = "Node " + n.ID
		}
		set := make(map[string]struct{}, len(n.CorrectSpecies))
		for _, sid := range n.CorrectSpecies {
			if _, ok := c.speciesIdx[sid]; !ok {
				warnings = append(warnings, fmt.Sprintf("node %s accepts unknown species %q", n.ID, sid))
			}
			set[sid] = struct{}{}
		}
		if len(set) == 0 {
			warnings = append(warnings, fmt.Sprintf("node %s has no correct species", n.ID))
		}
		c.nodeIdx[n.ID] = len(c.nodes)
		c.nodes = append(c.nodes, n.clone())
		c.answers[n.ID] = set
	}

	// Sorted so warnings come out in a stable order.
	speciesIDs := make([]string, 0, len(doc.Notes))
	for sid := range doc.Notes {
		speciesIDs = append(speciesIDs, sid)
	}
	sort.Strings(speciesIDs)
	for _, sid := range speciesIDs {
		byNode := doc.Notes[sid]
		if _, ok := c.speciesIdx[sid]; !ok {
			warnings = append(warnings, fmt.Sprintf("note for unknown species %q is unreachable", sid))
		}
		nodeIDs := make([]string, 0, len(byNode))
		for nid := range byNode {
			nodeIDs = append(nodeIDs, nid)
		}
		sort.Strings(nodeIDs)
		for _, nid := range nodeIDs {
			text := byNode[nid]
			if _, ok := c.nodeIdx[nid]; !ok {
				warnings = append(warnings, fmt.Sprintf("note for species %q references unknown node %q", sid, nid))
			}
			if text == "" {
				continue
			}
			if c.notes[sid] == nil {
				c.notes[sid] = make(map[string]string, len(byNode))
			}
			c.notes[sid][nid] = text
		}
	}

	return c, warnings, nil
}

func inRange(v float64) bool { return v >= 0 && v <= 100 }

// IsCorrect reports whether speciesID belongs on nodeID.
// An unknown node is never correct.
func (c *Catalog) IsCorrect(nodeID, speciesID string) bool {
	set, ok := c.answers[nodeID]
	if !ok {
		return false
	}
	_, ok = set[speciesID]
	return ok
}

// EducationalNote returns the supplementary text shown after a correct
// placement of speciesID on nodeID, if the catalog has one.
func (c *Catalog) EducationalNote(speciesID, nodeID string) (string, bool) {
	text, ok := c.notes[speciesID][nodeID]
	return text, ok
}

// Scoring returns the points for a correct and an incorrect placement.
func (c *Catalog) Scoring() Scoring { return c.scoring }

// Points returns the score delta for a placement outcome.
func (c *Catalog) Points(correct bool) int {
	if correct {
		return c.scoring.Correct
	}
	return c.scoring.Incorrect
}

// Species returns every species in catalog order.
func (c *Catalog) Species() []Species {
	out := make([]Species, len(c.species))
	for i, s := range c.species {
		out[i] = s.clone()
	}
	return out
}

// Nodes returns every node in catalog order.
func (c *Catalog) Nodes() []Node {
	out := make([]Node, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.clone()
	}
	return out
}

// SpeciesByID looks up one species.
func (c *Catalog) SpeciesByID(id string) (Species, bool) {
	i, ok := c.speciesIdx[id]
	if !ok {
		return Species{}, false
	}
	return c.species[i].clone(), true
}

// NodeByID looks up one node.
func (c *Catalog) NodeByID(id string) (Node, bool) {
	i, ok := c.nodeIdx[id]
	if !ok {
		return Node{}, false
	}
	return c.nodes[i].clone(), true
}

// Tree returns the board geometry, if the catalog carries one.
func (c *Catalog) Tree() (Tree, bool) {
	if c.tree == nil {
		return Tree{}, false
	}
	return c.tree.clone(), true
}

func (c *Catalog) Title() string              { return c.title }
func (c *Catalog) Description() string        { return c.description }
func (c *Catalog) EducationalContent() string { return c.education }
