package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// BoardSnapshot is a saved board. Seed identifies the engine that produced
// it, not the board: an engine plays many games from one random source, so
// replaying the seed only reproduces the first game it generated.
type BoardSnapshot struct {
	Seed            int64  `yaml:"seed"`
	SerializedBoard string `yaml:"board"`
}

// Snapshot captures the mine layout and cell states of a game
func Snapshot(state *GameState, seed int64) *BoardSnapshot {
	rows := make([]string, len(state.Board))
	for r, row := range state.Board {
		line := make([]byte, len(row))
		for c, cell := range row {
			line[c] = cell.serialize()
		}
		rows[r] = string(line)
	}

	return &BoardSnapshot{
		Seed:            seed,
		SerializedBoard: strings.Join(rows, "\n"),
	}
}

func (snapshot *BoardSnapshot) Serialize() (string, error) {
	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Restore rebuilds a GameState from the snapshot, recomputing adjacency
// counts, flags and status.
func (snapshot *BoardSnapshot) Restore() (*GameState, error) {
	rows := strings.Split(strings.TrimRight(snapshot.SerializedBoard, "\n"), "\n")
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("snapshot board is empty")
	}

	cols := len(rows[0])
	board := NewBoard(len(rows), cols)
	anyRevealed := false
	lost := false

	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("snapshot row %d has %d cells, expected %d", r, len(row), cols)
		}
		for c, char := range row {
			cell := &board[r][c]
			if !cell.deserialize(char) {
				return nil, fmt.Errorf("snapshot cell (%d, %d) has unknown value %q", r, c, char)
			}
			if cell.State == Revealed {
				anyRevealed = true
				lost = lost || cell.IsMine
			}
		}
	}
	board.countAdjacentMines()

	state := &GameState{
		Board: board,
		Rows:  len(rows),
		Cols:  cols,
		Mines: board.NumMines(),
	}
	state.Populated = state.Mines > 0 || anyRevealed
	state.FlagsPlaced = state.CountFlags()

	switch {
	case lost:
		state.Status = Lost
	case state.RevealedSafeCells() == state.SafeCells():
		state.Status = Won
	default:
		state.Status = Playing
	}
	return state, nil
}

func LoadSnapshot(in string) (*BoardSnapshot, error) {
	var snapshot BoardSnapshot
	if err := yaml.Unmarshal([]byte(in), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SaveSnapshot writes the snapshot of a finished game into dir, creating the
// directory if needed, and returns the path written.
func SaveSnapshot(dir string, snapshot *BoardSnapshot, status GameStatus, t time.Time) (string, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err := os.MkdirAll(dir, 0777); err != nil {
			return "", err
		}
	} else if !stat.Mode().IsDir() {
		return "", fmt.Errorf("%s is not a directory; cannot save snapshots to it", dir)
	}

	out, err := snapshot.Serialize()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, snapshotFilename(status, t))
	if err := os.WriteFile(path, []byte(out), 0666); err != nil {
		return "", err
	}
	return path, nil
}

var outcomeSuffixes = map[GameStatus]string{
	Won:  "win",
	Lost: "loss",
}

func snapshotFilename(status GameStatus, t time.Time) string {
	suffix, ok := outcomeSuffixes[status]
	if !ok {
		suffix = "other"
	}
	return fmt.Sprintf("%s_%s.yaml", t.Format("20060102_150405"), suffix)
}
