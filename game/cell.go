package game

import "fmt"

type Cell struct {
	IsMine        bool      `json:"isMine"`
	State         CellState `json:"state"`
	AdjacentMines int       `json:"adjacentMines"`
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (pos Position) String() string {
	return fmt.Sprintf("(%d, %d)", pos.Row, pos.Col)
}

func (cell Cell) IsHidden() bool {
	return cell.State == Hidden
}

func (cell Cell) IsRevealed() bool {
	return cell.State == Revealed
}

func (cell Cell) IsFlagged() bool {
	return cell.State == Flagged
}

// rune returns the single-character representation used by String and snapshots.
// Snapshots only care about the mine/state pair, so numbers are rendered here only.
func (cell Cell) rune() rune {
	switch cell.State {
	case Flagged:
		return 'F'
	case Revealed:
		if cell.IsMine {
			return '*'
		}
		if cell.AdjacentMines == 0 {
			return '.'
		}
		return rune('0' + cell.AdjacentMines)
	default:
		return '#'
	}
}

func (cell Cell) serialize() byte {
	switch {
	case cell.IsMine:
		switch cell.State {
		case Revealed:
			return '*'
		case Flagged:
			return 'F'
		default:
			return 'O'
		}
	case cell.State == Flagged:
		return 'f'
	case cell.State == Revealed:
		return '.'
	default:
		return '#'
	}
}

func (cell *Cell) deserialize(c rune) bool {
	switch c {
	case '*':
		cell.IsMine, cell.State = true, Revealed
	case 'F':
		cell.IsMine, cell.State = true, Flagged
	case 'O':
		cell.IsMine, cell.State = true, Hidden
	case 'f':
		cell.IsMine, cell.State = false, Flagged
	case '.':
		cell.IsMine, cell.State = false, Revealed
	case '#':
		cell.IsMine, cell.State = false, Hidden
	default:
		return false
	}
	return true
}
