package game

import (
	"math/rand"

	"github.com/they4kman/sweeprelay/util/collections"
)

type Board [][]Cell

// NewBoard returns a rows×cols board of hidden, mine-free cells
func NewBoard(rows, cols int) Board {
	board := make(Board, rows)
	for row := range board {
		board[row] = make([]Cell, cols)
		for col := range board[row] {
			board[row][col].State = Hidden
		}
	}
	return board
}

// Generate returns a freshly mined board.
//
// Mines are placed by rejection sampling, skipping cells already mined and
// cells within the safe zone (the given position and its neighbors). The
// caller must ensure mineCount leaves room outside the safe zone, otherwise
// placement never terminates.
func Generate(rows, cols, mineCount int, safeZone *Position, rng *rand.Rand) Board {
	board := NewBoard(rows, cols)

	safeCells := make(collections.Set[Position])
	if safeZone != nil {
		safeCells = board.SafeZone(*safeZone)
	}

	for minesPlaced := 0; minesPlaced < mineCount; {
		pos := Position{Row: rng.Intn(rows), Col: rng.Intn(cols)}
		cell := &board[pos.Row][pos.Col]

		if !cell.IsMine && !safeCells.Contains(pos) {
			cell.IsMine = true
			minesPlaced++
		}
	}

	board.countAdjacentMines()
	return board
}

func (board Board) Rows() int {
	return len(board)
}

func (board Board) Cols() int {
	if len(board) == 0 {
		return 0
	}
	return len(board[0])
}

func (board Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < board.Rows() && col < board.Cols()
}

func (board Board) At(pos Position) *Cell {
	if board.InBounds(pos.Row, pos.Col) {
		return &board[pos.Row][pos.Col]
	}
	return nil
}

// Neighbors returns the up-to-8 in-bounds positions surrounding pos
func (board Board) Neighbors(pos Position) []Position {
	neighbors := make([]Position, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if board.InBounds(pos.Row+dr, pos.Col+dc) {
				neighbors = append(neighbors, Position{Row: pos.Row + dr, Col: pos.Col + dc})
			}
		}
	}
	return neighbors
}

// SafeZone returns pos together with its in-bounds neighbors
func (board Board) SafeZone(pos Position) collections.Set[Position] {
	zone := collections.NewSet(board.Neighbors(pos)...)
	zone.Add(pos)
	return zone
}

func (board Board) Clone() Board {
	clone := make(Board, len(board))
	for row := range board {
		clone[row] = make([]Cell, len(board[row]))
		copy(clone[row], board[row])
	}
	return clone
}

func (board Board) NumMines() int {
	count := 0
	for _, row := range board {
		for _, cell := range row {
			if cell.IsMine {
				count++
			}
		}
	}
	return count
}

func (board Board) countAdjacentMines() {
	for row := range board {
		for col := range board[row] {
			cell := &board[row][col]
			cell.AdjacentMines = 0
			if cell.IsMine {
				continue
			}
			for _, neighbor := range board.Neighbors(Position{Row: row, Col: col}) {
				if board[neighbor.Row][neighbor.Col].IsMine {
					cell.AdjacentMines++
				}
			}
		}
	}
}
