package game

type CellState string
type GameStatus string

const (
	Hidden   CellState = "hidden"
	Revealed CellState = "revealed"
	Flagged  CellState = "flagged"
)

const (
	Playing GameStatus = "playing"
	Won     GameStatus = "won"
	Lost    GameStatus = "lost"
)

// Defaults used when a new game is requested without explicit dimensions
const (
	DefaultRows  = 9
	DefaultCols  = 9
	DefaultMines = 10
)

func (status GameStatus) IsTerminal() bool {
	return status == Won || status == Lost
}
