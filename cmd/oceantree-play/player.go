package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/robalobadob/oceantree/internal/catalog"
	"github.com/robalobadob/oceantree/internal/game"
	"github.com/robalobadob/oceantree/internal/match"
)

var commands = []match.Candidate{
	{Key: "place", Terms: []string{"place", "put", "drop", "p"}},
	{Key: "state", Terms: []string{"state", "score", "board", "s"}},
	{Key: "species", Terms: []string{"species", "list", "ls"}},
	{Key: "reset", Terms: []string{"reset", "restart"}},
	{Key: "help", Terms: []string{"help", "h", "?"}},
	{Key: "quit", Terms: []string{"quit", "exit", "q"}},
}

const helpText = `commands:
  place <node> <species>   put a species on a numbered node
  state                    score, progress and the board
  species                  species still to place
  reset                    start over
  quit                     leave
`

// player drives one Machine from line-oriented input. Asynchronous events
// (reverts, notes, expiring messages) are printed by the subscription.
type player struct {
	m       *game.Machine
	species []match.Candidate

	mu   sync.Mutex // guards out and last
	out  io.Writer
	last game.Snapshot

	cancel func()
}

func newPlayer(m *game.Machine, out io.Writer) *player {
	p := &player{m: m, out: out, last: m.State()}
	for _, s := range m.Catalog().Species() {
		p.species = append(p.species, match.Candidate{Key: s.ID, Terms: []string{s.ID, s.Name}})
	}
	p.cancel = m.Subscribe(p.observe)
	return p
}

// Close stops listening for state changes.
func (p *player) Close() { p.cancel() }

// Run processes commands until quit or end of input.
func (p *player) Run(in io.Reader) error {
	cat := p.m.Catalog()
	p.printf("%s\n%s\n\n", cat.Title(), cat.Description())
	p.printf("%s", helpText)

	sc := bufio.NewScanner(in)
	for {
		p.printf("> ")
		if !sc.Scan() {
			break
		}
		if !p.exec(sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

// exec runs one command line and reports whether to keep going.
func (p *player) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, alts, ok := match.Resolve(fields[0], commands)
	if !ok {
		p.unknown("command", fields[0], alts)
		return true
	}
	args := fields[1:]

	switch cmd {
	case "place":
		if len(args) < 2 {
			p.printf("usage: place <node> <species>\n")
			return true
		}
		p.place(args[0], strings.Join(args[1:], " "))
	case "state":
		p.printState(p.m.State())
	case "species":
		p.printSpecies(p.m.State().Available)
	case "reset":
		p.m.Reset()
		p.printf("new game\n")
	case "help":
		p.printf("%s", helpText)
	case "quit":
		return false
	}
	return true
}

func (p *player) place(nodeID, speciesInput string) {
	cat := p.m.Catalog()
	if _, ok := cat.NodeByID(nodeID); !ok {
		p.printf("there is no node %q\n", nodeID)
		return
	}
	speciesID, alts, ok := match.Resolve(speciesInput, p.species)
	if !ok {
		p.unknown("species", speciesInput, alts)
		return
	}
	res := p.m.AttemptPlacement(nodeID, speciesID)
	if !res.Accepted {
		p.printf("can't place that there right now\n")
		return
	}
	snap := p.m.State()
	if snap.Status == game.StatusCompleted && res.Correct {
		p.printf("Congratulations! You've classified all marine species.\n")
		p.printf("Final score: %d points (%d/%d correct)\n", snap.Score, snap.CorrectPlacements, snap.TotalPlacements)
	}
}

// observe prints what changed between consecutive snapshots.
func (p *player) observe(snap game.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.last
	if snap.Version <= prev.Version {
		return
	}
	p.last = snap

	if f := snap.Feedback; f != nil && (prev.Feedback == nil || *prev.Feedback != *f) {
		fmt.Fprintf(p.out, "  %s %s\n", feedbackMark(f.Kind), f.Text)
	}
	if len(prev.Nodes) != len(snap.Nodes) {
		return
	}
	for i, n := range snap.Nodes {
		was := prev.Nodes[i]
		if was.Placement == game.PlacementIncorrect && n.Placed == nil && was.Placed != nil {
			fmt.Fprintf(p.out, "  %s returned to the collection\n", was.Placed.Name)
		}
	}
}

func feedbackMark(k game.FeedbackKind) string {
	if k == game.FeedbackError {
		return "✗"
	}
	return "✓"
}

func (p *player) printState(s game.Snapshot) {
	p.printf("score %d  correct %d  incorrect %d  completed %d/%d  progress %.0f%%\n",
		s.Score, s.CorrectPlacements, s.IncorrectPlacements, s.CorrectPlacements, s.TotalSpecies, s.Progress)
	for _, n := range s.Nodes {
		occupant := "-"
		if n.Placed != nil {
			occupant = n.Placed.Name
			if n.Placement == game.PlacementIncorrect {
				occupant += " (wrong)"
			}
		}
		p.printf("  %-4s %s\n", n.ID, occupant)
	}
}

func (p *player) printSpecies(list []catalog.Species) {
	if len(list) == 0 {
		p.printf("no species left\n")
		return
	}
	p.printf("%d remaining:\n", len(list))
	for _, s := range list {
		p.printf("  %-14s %s\n", s.ID, s.Name)
	}
}

func (p *player) unknown(what, input string, alts []string) {
	if len(alts) > 0 {
		p.printf("%s %q is ambiguous: %s\n", what, input, strings.Join(alts, ", "))
		return
	}
	p.printf("unknown %s %q\n", what, input)
}

func (p *player) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
