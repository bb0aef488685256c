package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/they4kman/sweeprelay/game"
)

type published struct {
	kind   string
	state  *game.GameState
	action string
	data   map[string]interface{}
}

type fakePublisher struct {
	events []published
}

func (pub *fakePublisher) PublishState(state *game.GameState) {
	pub.events = append(pub.events, published{kind: "game_state", state: state})
}

func (pub *fakePublisher) PublishAction(name string, data map[string]interface{}) {
	pub.events = append(pub.events, published{kind: "action", action: name, data: data})
}

func newHolder(t *testing.T, policy game.FlagPolicy) (*Holder, *fakePublisher) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	pub := &fakePublisher{}
	return NewHolder(game.NewEngine(21, policy), pub, Config{Logger: logger}), pub
}

func intPtr(i int) *int {
	return &i
}

// findCell returns the first position matching want on the current board
func findCell(t *testing.T, state *game.GameState, want func(game.Cell) bool) game.Position {
	t.Helper()
	for r, row := range state.Board {
		for c, cell := range row {
			if want(cell) {
				return game.Position{Row: r, Col: c}
			}
		}
	}
	t.Fatal("no matching cell")
	return game.Position{}
}

func TestStartNewGameDefaults(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)

	result := holder.StartNewGame(nil, nil, nil)

	require.True(t, result.Success, result.Message)
	state := holder.State()
	assert.Equal(t, 9, state.Rows)
	assert.Equal(t, 9, state.Cols)
	assert.Equal(t, 10, state.Mines)
	assert.False(t, state.Populated)

	require.Len(t, pub.events, 2)
	assert.Same(t, state, pub.events[0].state)
	assert.Equal(t, "start_new_game", pub.events[1].action)
	assert.Equal(t, map[string]interface{}{"rows": 9, "cols": 9, "mines": 10}, pub.events[1].data)
}

func TestStartNewGameRejectsBeforeEngine(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	require.True(t, holder.StartNewGame(intPtr(5), intPtr(5), intPtr(3)).Success)
	before := holder.State()

	for _, dims := range [][3]int{{2, 2, 3}, {2, 2, 4}, {0, 9, 10}, {9, 9, 0}} {
		result := holder.StartNewGame(intPtr(dims[0]), intPtr(dims[1]), intPtr(dims[2]))
		assert.False(t, result.Success, "%v", dims)
		assert.Contains(t, result.Message, "Cannot start a new game")
	}

	assert.Same(t, before, holder.State())
	assert.Len(t, pub.events, 2)
}

func TestCommandsRequireGame(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)

	for _, result := range []Result{holder.RevealCell(0, 0), holder.ToggleFlag(0, 0), holder.BoardState()} {
		assert.False(t, result.Success)
		assert.Equal(t, noGameMessage, result.Message)
	}
	assert.Empty(t, pub.events)
}

func TestCommandsCheckBounds(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	holder.StartNewGame(intPtr(4), intPtr(6), intPtr(3))
	pub.events = nil

	for _, pos := range []game.Position{{Row: -1, Col: 0}, {Row: 4, Col: 0}, {Row: 0, Col: 6}, {Row: 0, Col: -2}} {
		result := holder.RevealCell(pos.Row, pos.Col)
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "row must be 0-3 and col 0-5")

		assert.False(t, holder.ToggleFlag(pos.Row, pos.Col).Success)
	}
	assert.Empty(t, pub.events)
}

func TestRevealCellPublishesStateThenAction(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	holder.StartNewGame(nil, nil, nil)
	pub.events = nil

	result := holder.RevealCell(4, 4)

	require.True(t, result.Success, result.Message)
	state := holder.State()
	assert.True(t, state.Populated)
	assert.Equal(t, 10, state.Board.NumMines())

	require.Len(t, pub.events, 2)
	assert.Equal(t, "game_state", pub.events[0].kind)
	assert.Same(t, state, pub.events[0].state)
	assert.Equal(t, "click_cell", pub.events[1].action)
	assert.Equal(t, map[string]interface{}{"row": 4, "col": 4, "result": string(state.Status)}, pub.events[1].data)
}

func TestRevealCellNeutralAndRejectedCases(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	holder.StartNewGame(nil, nil, nil)
	holder.RevealCell(4, 4)
	state := holder.State()
	pub.events = nil

	result := holder.RevealCell(4, 4)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "already revealed")

	hidden := findCell(t, state, game.Cell.IsHidden)
	require.True(t, holder.ToggleFlag(hidden.Row, hidden.Col).Success)
	flagged := holder.State()
	pub.events = nil

	result = holder.RevealCell(hidden.Row, hidden.Col)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "flagged")
	assert.Same(t, flagged, holder.State())
	assert.Empty(t, pub.events)
}

func TestLosingEndsTheGame(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	pub := &fakePublisher{}
	holder := NewHolder(game.NewEngine(21, game.FlagsLockedAfterEnd), pub, Config{
		Rows: 9, Cols: 9, Mines: 10,
		SnapshotsDir: dir,
		Logger:       logger,
	})
	holder.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	holder.StartNewGame(nil, nil, nil)
	holder.RevealCell(4, 4)
	mine := findCell(t, holder.State(), func(cell game.Cell) bool { return cell.IsMine })

	result := holder.RevealCell(mine.Row, mine.Col)
	assert.False(t, result.Success)
	assert.Equal(t, game.Lost, holder.State().Status)
	assert.Equal(t, "lost", pub.events[len(pub.events)-1].data["result"])

	lost := holder.State()
	other := findCell(t, lost, game.Cell.IsHidden)
	assert.Contains(t, holder.RevealCell(other.Row, other.Col).Message, "already over")
	assert.Contains(t, holder.ToggleFlag(other.Row, other.Col).Message, "already over")
	assert.Same(t, lost, holder.State())

	contents, err := os.ReadFile(filepath.Join(dir, "20240102_030405_loss.yaml"))
	require.NoError(t, err)
	snapshot, err := game.LoadSnapshot(string(contents))
	require.NoError(t, err)
	assert.Equal(t, int64(21), snapshot.Seed)
}

func TestFlagsAfterEndWhenAllowed(t *testing.T) {
	holder, _ := newHolder(t, game.FlagsAlwaysToggle)
	holder.StartNewGame(nil, nil, nil)
	holder.RevealCell(4, 4)
	mine := findCell(t, holder.State(), func(cell game.Cell) bool { return cell.IsMine })
	holder.RevealCell(mine.Row, mine.Col)
	require.Equal(t, game.Lost, holder.State().Status)

	hidden := findCell(t, holder.State(), game.Cell.IsHidden)
	result := holder.ToggleFlag(hidden.Row, hidden.Col)
	assert.True(t, result.Success, result.Message)
	assert.Equal(t, 1, holder.State().FlagsPlaced)
}

func TestToggleFlagTwiceRestoresState(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	holder.StartNewGame(nil, nil, nil)
	before := holder.State()

	placed := holder.ToggleFlag(2, 3)
	assert.Equal(t, "Placed a flag on cell (2, 3)", placed.Message)
	assert.Equal(t, 1, placed.Data["flagsPlaced"])
	assert.Equal(t, "flagged", pub.events[len(pub.events)-1].data["state"])

	removed := holder.ToggleFlag(2, 3)
	assert.Equal(t, "Removed the flag from cell (2, 3)", removed.Message)
	assert.Equal(t, before, holder.State())
}

func TestBoardStateHidesUnrevealedCells(t *testing.T) {
	holder, _ := newHolder(t, game.FlagsLockedAfterEnd)
	holder.StartNewGame(intPtr(3), intPtr(4), intPtr(2))

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Rows   int    `json:"rows"`
			Cols   int    `json:"cols"`
			Status string `json:"status"`
			Board  [][]struct {
				Position      game.Position `json:"position"`
				State         string        `json:"state"`
				AdjacentMines *int          `json:"adjacentMines"`
				IsMine        *bool         `json:"isMine"`
			} `json:"board"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(holder.BoardState().Text()), &out))

	assert.True(t, out.Success)
	assert.Equal(t, 3, out.Data.Rows)
	assert.Equal(t, "playing", out.Data.Status)
	require.Len(t, out.Data.Board, 3)
	require.Len(t, out.Data.Board[0], 4)
	assert.Equal(t, game.Position{Row: 2, Col: 1}, out.Data.Board[2][1].Position)
	assert.Equal(t, "hidden", out.Data.Board[2][1].State)
	assert.Nil(t, out.Data.Board[2][1].AdjacentMines)
	assert.Nil(t, out.Data.Board[2][1].IsMine)

	holder.RevealCell(0, 0)
	require.NoError(t, json.Unmarshal([]byte(holder.BoardState().Text()), &out))
	require.NotNil(t, out.Data.Board[0][0].IsMine)
	assert.False(t, *out.Data.Board[0][0].IsMine)
	assert.NotNil(t, out.Data.Board[0][0].AdjacentMines)
}

func TestEngineFaultLeavesStateUntouched(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	broken := &game.GameState{Board: game.NewBoard(1, 1), Rows: 3, Cols: 3, Mines: 1, Status: game.Playing}
	holder.state = broken

	result := holder.RevealCell(2, 2)

	assert.False(t, result.Success)
	assert.Equal(t, "Unexpected error in click_cell", result.Message)
	assert.Same(t, broken, holder.State())
	assert.Empty(t, pub.events)
}

func TestRules(t *testing.T) {
	holder, _ := newHolder(t, game.FlagsLockedAfterEnd)
	result := holder.Rules()
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Data["rules"])
}

func TestRepublish(t *testing.T) {
	holder, pub := newHolder(t, game.FlagsLockedAfterEnd)
	holder.Republish()
	assert.Empty(t, pub.events)

	holder.StartNewGame(nil, nil, nil)
	pub.events = nil
	holder.Republish()

	require.Len(t, pub.events, 1)
	assert.Same(t, holder.State(), pub.events[0].state)
}
