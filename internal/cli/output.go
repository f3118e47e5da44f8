package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case RoomSession:
		o.printRoomSession(v)
	case RoomSessionList:
		o.printRoomSessionList(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches the GraphQL User type)
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Pseudo      string `json:"pseudo"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateJoined  string `json:"dateJoined"`
	IsActive    bool   `json:"isActive"`
	IsStaff     bool   `json:"isStaff"`
	IsSuperuser bool   `json:"isSuperuser"`
}

// RoomSession response type
type RoomSession struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PlayedDatetime string  `json:"playedDatetime"`
	DurationTime   float64 `json:"durationTime"`
	NumberOfHints  int     `json:"numberOfHints"`
}

// RoomSessionList is the result of rooms list
type RoomSessionList []RoomSession

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	_, _ = fmt.Fprintf(o.w, "User: %s <%s> (%s)\n", u.Pseudo, u.Email, u.ID)
	if u.FirstName != "" || u.LastName != "" {
		_, _ = fmt.Fprintf(o.w, "Name: %s %s\n", u.FirstName, u.LastName)
	}
	_, _ = fmt.Fprintf(o.w, "Joined: %s\n", u.DateJoined)
	if u.IsSuperuser {
		_, _ = fmt.Fprintln(o.w, "Superuser: yes")
	}
}

func (o *Output) printRoomSession(rs RoomSession) {
	d := time.Duration(rs.DurationTime * float64(time.Second))
	_, _ = fmt.Fprintf(o.w, "%s  %s  %s  hints: %d  (%s)\n", rs.PlayedDatetime, rs.Name, d, rs.NumberOfHints, rs.ID)
}

func (o *Output) printRoomSessionList(list RoomSessionList) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(o.w, "No room sessions")
		return
	}
	_, _ = fmt.Fprintf(o.w, "Room sessions (%d):\n", len(list))
	for _, rs := range list {
		_, _ = fmt.Fprint(o.w, "  ")
		o.printRoomSession(rs)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}
