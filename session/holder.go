package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweeprelay/game"
)

const noGameMessage = "No game in progress. Call start_new_game first"

// Publisher distributes every committed state and a notification describing
// the command that produced it
type Publisher interface {
	PublishState(state *game.GameState)
	PublishAction(name string, data map[string]interface{})
}

type nopPublisher struct{}

func (nopPublisher) PublishState(*game.GameState)                {}
func (nopPublisher) PublishAction(string, map[string]interface{}) {}

type Config struct {
	// Board used when start_new_game omits dimensions
	Rows, Cols, Mines int
	// Where finished games are saved; empty disables snapshots
	SnapshotsDir string

	Logger logrus.FieldLogger
}

// Holder owns the current game. Every mutation goes through the engine, is
// committed only when it completes, and is then published.
type Holder struct {
	engine    *game.Engine
	publisher Publisher
	config    Config
	log       logrus.FieldLogger
	now       func() time.Time

	mu    sync.Mutex
	state *game.GameState
}

func NewHolder(engine *game.Engine, publisher Publisher, config Config) *Holder {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if config.Rows == 0 && config.Cols == 0 && config.Mines == 0 {
		config.Rows, config.Cols, config.Mines = game.DefaultRows, game.DefaultCols, game.DefaultMines
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Holder{
		engine:    engine,
		publisher: publisher,
		config:    config,
		log:       config.Logger.WithField("component", "session"),
		now:       time.Now,
	}
}

// State returns the current game, or nil before the first game starts
func (holder *Holder) State() *game.GameState {
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return holder.state
}

// Republish sends the current game to the publisher again
func (holder *Holder) Republish() {
	holder.mu.Lock()
	defer holder.mu.Unlock()
	if holder.state != nil {
		holder.publisher.PublishState(holder.state)
	}
}

// recoverFault reports a panic in an operation as a failed result. The game
// is only replaced by commit, so a fault leaves it as it was.
func (holder *Holder) recoverFault(op string, result *Result) {
	if r := recover(); r != nil {
		holder.log.WithField("op", op).Errorf("unexpected fault: %v", r)
		*result = fail("Unexpected error in %s", op)
	}
}

// commit replaces the current game and publishes it. Must hold mu.
func (holder *Holder) commit(op string, next *game.GameState, action map[string]interface{}) {
	previous := holder.state
	holder.state = next

	holder.publisher.PublishState(next)
	holder.publisher.PublishAction(op, action)

	if next.Status.IsTerminal() && (previous == nil || !previous.Status.IsTerminal()) {
		holder.log.WithField("status", next.Status).Info("game finished")
		holder.saveSnapshot(next)
	}
}

func (holder *Holder) saveSnapshot(state *game.GameState) {
	if holder.config.SnapshotsDir == "" {
		return
	}
	path, err := game.SaveSnapshot(holder.config.SnapshotsDir, game.Snapshot(state, holder.engine.Seed()), state.Status, holder.now())
	if err != nil {
		holder.log.WithError(err).Warn("saving snapshot failed")
		return
	}
	holder.log.WithField("path", path).Info("saved snapshot")
}

// checkCell validates that a game exists and (row, col) lies on its board.
// Must hold mu.
func (holder *Holder) checkCell(row, col int) (Result, bool) {
	if holder.state == nil {
		return fail(noGameMessage), false
	}
	if !holder.state.InBounds(row, col) {
		return fail("Invalid position (%d, %d): row must be 0-%d and col 0-%d",
			row, col, holder.state.Rows-1, holder.state.Cols-1), false
	}
	return Result{}, true
}

func (holder *Holder) StartNewGame(rows, cols, mines *int) (result Result) {
	defer holder.recoverFault("start_new_game", &result)

	r, c, m := holder.config.Rows, holder.config.Cols, holder.config.Mines
	if rows != nil {
		r = *rows
	}
	if cols != nil {
		c = *cols
	}
	if mines != nil {
		m = *mines
	}

	next, err := holder.engine.NewGame(r, c, m)
	if err != nil {
		return fail("Cannot start a new game: %v", err)
	}

	holder.mu.Lock()
	defer holder.mu.Unlock()

	holder.log.WithFields(logrus.Fields{"rows": r, "cols": c, "mines": m}).Info("new game")
	holder.commit("start_new_game", next, map[string]interface{}{"rows": r, "cols": c, "mines": m})

	return succeed(map[string]interface{}{"rows": r, "cols": c, "mines": m},
		"Started a new game (%d rows × %d cols, %d mines)", r, c, m)
}

func (holder *Holder) RevealCell(row, col int) (result Result) {
	defer holder.recoverFault("click_cell", &result)
	holder.mu.Lock()
	defer holder.mu.Unlock()

	if failure, ok := holder.checkCell(row, col); !ok {
		return failure
	}
	state := holder.state
	if state.Status.IsTerminal() {
		return fail("The game is already over (status: %s). Start a new game to keep playing", state.Status)
	}

	cell := state.Board[row][col]
	switch cell.State {
	case game.Flagged:
		return fail("Cell (%d, %d) is flagged; remove the flag before revealing it", row, col)
	case game.Revealed:
		return succeed(map[string]interface{}{"adjacentMines": cell.AdjacentMines},
			"Cell (%d, %d) is already revealed", row, col)
	}

	next := holder.engine.Reveal(state, row, col)
	holder.commit("click_cell", next, map[string]interface{}{"row": row, "col": col, "result": string(next.Status)})

	revealed := next.Board[row][col]
	data := map[string]interface{}{"status": next.Status}
	switch next.Status {
	case game.Lost:
		return Result{Success: false, Message: "Game over! You revealed a mine", Data: data}
	case game.Won:
		return succeed(data, "You won! Every safe cell is revealed")
	default:
		data["adjacentMines"] = revealed.AdjacentMines
		data["isMine"] = revealed.IsMine
		return succeed(data, "Revealed cell (%d, %d)", row, col)
	}
}

func (holder *Holder) ToggleFlag(row, col int) (result Result) {
	defer holder.recoverFault("place_flag", &result)
	holder.mu.Lock()
	defer holder.mu.Unlock()

	if failure, ok := holder.checkCell(row, col); !ok {
		return failure
	}
	state := holder.state
	if state.Status.IsTerminal() && holder.engine.FlagPolicy() == game.FlagsLockedAfterEnd {
		return fail("The game is already over (status: %s). Start a new game to keep playing", state.Status)
	}
	if state.Board[row][col].State == game.Revealed {
		return succeed(nil, "Cell (%d, %d) is already revealed and cannot be flagged", row, col)
	}

	next := holder.engine.ToggleFlag(state, row, col)
	cell := next.Board[row][col]
	holder.commit("place_flag", next, map[string]interface{}{"row": row, "col": col, "state": string(cell.State)})

	data := map[string]interface{}{"flagsPlaced": next.FlagsPlaced}
	if cell.State == game.Flagged {
		return succeed(data, "Placed a flag on cell (%d, %d)", row, col)
	}
	return succeed(data, "Removed the flag from cell (%d, %d)", row, col)
}

type cellView struct {
	Position      game.Position  `json:"position"`
	State         game.CellState `json:"state"`
	AdjacentMines *int           `json:"adjacentMines"`
	IsMine        *bool          `json:"isMine"`
}

// BoardState describes the board as the agent may see it: mine and
// adjacency information only for revealed cells
func (holder *Holder) BoardState() (result Result) {
	defer holder.recoverFault("get_board_state", &result)
	holder.mu.Lock()
	defer holder.mu.Unlock()

	state := holder.state
	if state == nil {
		return fail(noGameMessage)
	}

	board := make([][]cellView, state.Rows)
	for r, row := range state.Board {
		board[r] = make([]cellView, state.Cols)
		for c, cell := range row {
			view := cellView{Position: game.Position{Row: r, Col: c}, State: cell.State}
			if cell.State == game.Revealed {
				adjacent, isMine := cell.AdjacentMines, cell.IsMine
				view.AdjacentMines, view.IsMine = &adjacent, &isMine
			}
			board[r][c] = view
		}
	}

	return succeed(map[string]interface{}{
		"rows":        state.Rows,
		"cols":        state.Cols,
		"mines":       state.Mines,
		"flagsPlaced": state.FlagsPlaced,
		"status":      state.Status,
		"board":       board,
	}, "%dx%d board, %d mines, %d flags, %s", state.Rows, state.Cols, state.Mines, state.FlagsPlaced, state.Status)
}

var rules = []string{
	"Minesweeper is won by revealing every cell that is not a mine",
	"click_cell reveals a cell; place_flag marks (or unmarks) a cell you believe is a mine",
	"A revealed number is the count of mines among the 8 surrounding cells",
	"Revealing a cell with no surrounding mines also reveals its neighbors",
	"Revealing a mine loses the game",
	"The first reveal of a game is never a mine",
	"Flagged cells cannot be revealed until the flag is removed",
	"When a number equals the flags around it, its other hidden neighbors are safe",
}

func (holder *Holder) Rules() Result {
	return succeed(map[string]interface{}{"rules": rules}, "Minesweeper rules")
}
