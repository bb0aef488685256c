package game

import "github.com/gammazero/deque"

// flood reveals the connected zero-adjacency region around start, plus the
// numbered cells bordering it. Mines are never revealed. A cell's transition
// to Revealed marks it as visited.
func flood(board Board, start Position) {
	var worklist deque.Deque
	worklist.PushBack(start)

	for worklist.Len() > 0 {
		pos := worklist.PopBack().(Position)

		for _, neighbor := range board.Neighbors(pos) {
			cell := board.At(neighbor)
			if cell.State != Hidden || cell.IsMine {
				continue
			}

			cell.State = Revealed
			if cell.AdjacentMines == 0 {
				worklist.PushBack(neighbor)
			}
		}
	}
}
