package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

var (
	ErrInvalidDimensions = errors.New("rows, cols and mines must be at least 1")
	ErrTooManyMines      = errors.New("mine count must be less than rows × cols")
)

type FlagPolicy int

const (
	// Flags may not be toggled once the game is won or lost
	FlagsLockedAfterEnd FlagPolicy = iota
	// Flags may be toggled at any time, even after the game ended
	FlagsAlwaysToggle
)

var flagPolicies = map[string]FlagPolicy{
	"locked": FlagsLockedAfterEnd,
	"always": FlagsAlwaysToggle,
}

func ParseFlagPolicy(name string) (FlagPolicy, error) {
	if policy, isValid := flagPolicies[name]; isValid {
		return policy, nil
	}
	return FlagsLockedAfterEnd, fmt.Errorf("invalid flag policy %q", name)
}

func (policy FlagPolicy) String() string {
	for name, p := range flagPolicies {
		if p == policy {
			return name
		}
	}
	return fmt.Sprint(int(policy))
}

// GameState is the aggregate root of a single game. Operations never modify a
// GameState in place; each returns a new value, so earlier references remain
// valid snapshots.
type GameState struct {
	Board       Board      `json:"board"`
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	Mines       int        `json:"mines"`
	Status      GameStatus `json:"status"`
	FlagsPlaced int        `json:"flagsPlaced"`

	// Populated is false until mines are placed on the first reveal
	Populated bool `json:"populated"`
}

func (state *GameState) Clone() *GameState {
	clone := *state
	clone.Board = state.Board.Clone()
	return &clone
}

func (state *GameState) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < state.Rows && col < state.Cols
}

// CountFlags returns the number of cells currently flagged
func (state *GameState) CountFlags() int {
	count := 0
	for _, row := range state.Board {
		for _, cell := range row {
			if cell.State == Flagged {
				count++
			}
		}
	}
	return count
}

// RevealedSafeCells returns the number of revealed cells which are not mines
func (state *GameState) RevealedSafeCells() int {
	count := 0
	for _, row := range state.Board {
		for _, cell := range row {
			if cell.State == Revealed && !cell.IsMine {
				count++
			}
		}
	}
	return count
}

func (state *GameState) SafeCells() int {
	return state.Rows*state.Cols - state.Mines
}

func (state *GameState) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%dx%d, %d mines, %d flags, %s\n", state.Rows, state.Cols, state.Mines, state.FlagsPlaced, state.Status)
	for _, row := range state.Board {
		for col, cell := range row {
			if col > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteRune(cell.rune())
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}

// Validate checks the parameters of a new game
func Validate(rows, cols, mines int) error {
	if rows < 1 || cols < 1 || mines < 1 {
		return fmt.Errorf("%w (got %dx%d with %d mines)", ErrInvalidDimensions, rows, cols, mines)
	}
	if mines >= rows*cols {
		return fmt.Errorf("%w (%d mines on %d cells)", ErrTooManyMines, mines, rows*cols)
	}
	return nil
}

// NewGame returns a game with an unpopulated board. Mines are placed on the
// first reveal, so the first move is never a mine.
func NewGame(rows, cols, mines int) (*GameState, error) {
	if err := Validate(rows, cols, mines); err != nil {
		return nil, err
	}

	return &GameState{
		Board:  NewBoard(rows, cols),
		Rows:   rows,
		Cols:   cols,
		Mines:  mines,
		Status: Playing,
	}, nil
}

// Engine applies the rules of the game. Its random source is only consulted
// when mines are placed.
type Engine struct {
	seed       int64
	rand       *rand.Rand
	flagPolicy FlagPolicy
}

// NewEngine creates an Engine. A zero seed seeds from the current time.
func NewEngine(seed int64, flagPolicy FlagPolicy) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		seed:       seed,
		rand:       rand.New(rand.NewSource(seed)),
		flagPolicy: flagPolicy,
	}
}

func (engine *Engine) Seed() int64 {
	return engine.seed
}

func (engine *Engine) FlagPolicy() FlagPolicy {
	return engine.flagPolicy
}

func (engine *Engine) NewGame(rows, cols, mines int) (*GameState, error) {
	return NewGame(rows, cols, mines)
}

// Reveal opens the cell at (row, col). If the cell is not hidden, the
// coordinates are out of bounds, or the game is over, state is returned as is.
func (engine *Engine) Reveal(state *GameState, row, col int) *GameState {
	if state.Status != Playing || !state.InBounds(row, col) || state.Board[row][col].State != Hidden {
		return state
	}

	next := state.Clone()
	target := Position{Row: row, Col: col}

	if !next.Populated {
		engine.populate(next, target)
	}

	cell := next.Board.At(target)
	cell.State = Revealed

	if cell.IsMine {
		for r := range next.Board {
			for c := range next.Board[r] {
				if next.Board[r][c].IsMine {
					next.Board[r][c].State = Revealed
				}
			}
		}
		next.Status = Lost
		return next
	}

	if cell.AdjacentMines == 0 {
		flood(next.Board, target)
	}

	if next.RevealedSafeCells() == next.SafeCells() {
		next.Status = Won
	}
	return next
}

// populate places mines around the first revealed cell, keeping any flags
// placed beforehand. When the full safe zone leaves too few cells for the
// mines, only the target itself is kept clear.
func (engine *Engine) populate(state *GameState, target Position) {
	var board Board
	if len(state.Board.SafeZone(target)) <= state.SafeCells() {
		board = Generate(state.Rows, state.Cols, state.Mines, &target, engine.rand)
	} else {
		board = engine.generateAvoiding(state, target)
	}

	for r := range board {
		for c := range board[r] {
			board[r][c].State = state.Board[r][c].State
		}
	}

	state.Board = board
	state.Populated = true
}

func (engine *Engine) generateAvoiding(state *GameState, target Position) Board {
	board := NewBoard(state.Rows, state.Cols)
	for minesPlaced := 0; minesPlaced < state.Mines; {
		pos := Position{Row: engine.rand.Intn(state.Rows), Col: engine.rand.Intn(state.Cols)}
		cell := board.At(pos)
		if !cell.IsMine && pos != target {
			cell.IsMine = true
			minesPlaced++
		}
	}
	board.countAdjacentMines()
	return board
}

// ToggleFlag flips a hidden cell to flagged and back. Revealed cells and
// out-of-bounds coordinates are ignored, as are finished games unless the
// engine's policy is FlagsAlwaysToggle.
func (engine *Engine) ToggleFlag(state *GameState, row, col int) *GameState {
	if !state.InBounds(row, col) || state.Board[row][col].State == Revealed {
		return state
	}
	if state.Status.IsTerminal() && engine.flagPolicy == FlagsLockedAfterEnd {
		return state
	}

	next := state.Clone()
	cell := &next.Board[row][col]
	switch cell.State {
	case Hidden:
		cell.State = Flagged
	case Flagged:
		cell.State = Hidden
	}

	next.FlagsPlaced = next.CountFlags()
	return next
}
