package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/castlebay/halcyon/internal/models"
)

var (
	_ list.Item = eventItem{}
)

// eventItem wraps [models.AuthEvent] to implement [list.Item].
type eventItem struct {
	event models.AuthEvent
}

func (i eventItem) FilterValue() string { return i.event.Kind }
func (i eventItem) Title() string       { return i.event.Kind }
func (i eventItem) Description() string {
	desc := ago(i.event.CreatedAt)
	if i.event.Detail != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.event.Detail)
	}
	return desc
}

// ago renders a coarse relative timestamp for the event list.
func ago(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
