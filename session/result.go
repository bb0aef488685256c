package session

import (
	"encoding/json"
	"fmt"
)

// Result is what every command returns to the calling agent
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func succeed(data map[string]interface{}, format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...), Data: data}
}

func fail(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Text renders the result as indented JSON
func (result Result) Text() string {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success": false, "message": %q}`, err.Error())
	}
	return string(out)
}
