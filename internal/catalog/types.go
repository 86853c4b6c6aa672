// internal/catalog/types.go
//
// Data types for the static game catalog.
// Defines:
//   - Taxonomy / Species: placeable marine organisms.
//   - Node: a numbered position on the phylogenetic tree and its answer set.
//   - Scoring: fixed reward and penalty applied per placement.
//   - Tree: optional board geometry, passed through to the presentation.
//   - Document: the JSON shape the catalog is loaded from.

package catalog

// Taxonomy is the classification shown on a species card.
// Class, Order and Family are optional.
type Taxonomy struct {
	Kingdom string `json:"kingdom"`
	Phylum  string `json:"phylum"`
	Class   string `json:"class,omitempty"`
	Order   string `json:"order,omitempty"`
	Family  string `json:"family,omitempty"`
}

// Species is a draggable organism. Immutable once the catalog is built.
type Species struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Image           string   `json:"image"`
	Taxonomy        Taxonomy `json:"taxonomy"`
	Characteristics []string `json:"characteristics"`
}

// Node is a fixed placement target on the tree.
// X and Y are percentages of the board in [0,100].
type Node struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	CorrectSpecies []string `json:"correctSpecies"`
}

// Scoring holds the points added for a correct placement and for an
// incorrect one (normally negative).
type Scoring struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

// DefaultScoring is +10 for a correct placement and −2 for a miss.
var DefaultScoring = Scoring{Correct: 10, Incorrect: -2}

// Branch is one line segment of the drawn tree, in board coordinates.
type Branch struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Tree describes how the board is drawn. The core never reads it.
type Tree struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Branches []Branch `json:"branches"`
}

// Document is the on-disk representation of a catalog.
// Notes is keyed by species id, then node id.
type Document struct {
	Title              string                       `json:"title"`
	Description        string                       `json:"description"`
	EducationalContent string                       `json:"educationalContent"`
	Scoring            *Scoring                     `json:"scoring,omitempty"`
	Tree               *Tree                        `json:"tree,omitempty"`
	Species            []Species                    `json:"species"`
	Nodes              []Node                       `json:"nodes"`
	Notes              map[string]map[string]string `json:"notes,omitempty"`
}

func (s Species) clone() Species {
	s.Characteristics = append([]string(nil), s.Characteristics...)
	return s
}

func (n Node) clone() Node {
	n.CorrectSpecies = append([]string(nil), n.CorrectSpecies...)
	return n
}

func (t Tree) clone() Tree {
	t.Branches = append([]Branch{}, t.Branches...)
	return t
}
