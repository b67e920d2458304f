package store

import (
	"context"
	"fmt"
	"log"
)

// Named is implemented by actions that report a stable type name.
type Named interface {
	ActionType() string
}

func actionName(a any) string {
	if n, ok := a.(Named); ok {
		return n.ActionType()
	}
	return fmt.Sprintf("%T", a)
}

// LogListener logs every applied action.
func LogListener[S, A any]() Listener[S, A] {
	return ListenerFunc[S, A](func(_ context.Context, _, _ S, action A) error {
		log.Printf("store: applied %s", actionName(action))
		return nil
	})
}
