package main

import (
	"chat-relay/domain/event"
	"fmt"

	"github.com/gookit/color"
)

func render(evt event.Event) string {
	switch e := evt.(type) {
	case event.Joined:
		return color.Green.Sprintf("* %s joined", e.Name)
	case event.Left:
		return color.Yellow.Sprintf("* %s left", e.Name)
	case event.Said:
		return fmt.Sprintf("%s: %s", color.Cyan.Sprint(e.Name), e.Text)
	case event.Failure:
		return color.Red.Sprintf("! %s", e.Kind)
	default:
		return fmt.Sprintf("? %v", evt)
	}
}
