package session

import (
	"encoding/json"
	"strings"
)

// Command is one request from the calling agent
type Command struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type arguments struct {
	Row   *int `json:"row"`
	Col   *int `json:"col"`
	Rows  *int `json:"rows"`
	Cols  *int `json:"cols"`
	Mines *int `json:"mines"`
}

// Commands lists the command names Dispatch understands
var Commands = []string{"get_rules", "get_board_state", "place_flag", "click_cell", "start_new_game"}

// Dispatch routes a named command to the holder. Bad arguments and unknown
// names are reported as failed results, never as errors.
func (holder *Holder) Dispatch(command Command) Result {
	var args arguments
	if len(command.Arguments) > 0 && string(command.Arguments) != "null" {
		if err := json.Unmarshal(command.Arguments, &args); err != nil {
			return fail("Invalid arguments for %s: %v", command.Name, err)
		}
	}

	switch command.Name {
	case "get_rules":
		return holder.Rules()
	case "get_board_state":
		return holder.BoardState()
	case "start_new_game":
		return holder.StartNewGame(args.Rows, args.Cols, args.Mines)
	case "click_cell", "place_flag":
		if args.Row == nil || args.Col == nil {
			return fail("%s requires row and col", command.Name)
		}
		if command.Name == "click_cell" {
			return holder.RevealCell(*args.Row, *args.Col)
		}
		return holder.ToggleFlag(*args.Row, *args.Col)
	default:
		return fail("Unknown command %q; expected one of %s", command.Name, strings.Join(Commands, ", "))
	}
}
