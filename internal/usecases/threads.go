package usecases

import (
	"context"
	"fmt"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// maxThreadDepth bounds both the walk to the root and the descent through
// replies. Parents always predate children so cycles cannot form, but the
// guard keeps a pathological thread from exhausting the stack.
const maxThreadDepth = 100

// ThreadResolver rebuilds a full reply tree from flat parent links.
type ThreadResolver struct {
	messages interfaces.MessageStore
}

func NewThreadResolver(messages interfaces.MessageStore) *ThreadResolver {
	return &ThreadResolver{messages: messages}
}

// Thread returns the whole thread the seed message belongs to as
// [root, descendants...]: children in creation order, each followed
// immediately by its own subtree. Returns empty when the seed is unknown.
func (t *ThreadResolver) Thread(ctx context.Context, seedID int64) ([]entities.Message, error) {
	msg, err := t.messages.Get(ctx, seedID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	// Climb to the root.
	root := msg
	for depth := 0; root.ParentID != 0; depth++ {
		if depth >= maxThreadDepth {
			return nil, fmt.Errorf("thread deeper than %d levels at message %d", maxThreadDepth, root.ID)
		}
		parent, err := t.messages.Get(ctx, root.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		root = parent
	}

	out := []entities.Message{*root}
	if err := t.collect(ctx, root.ID, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *ThreadResolver) collect(ctx context.Context, parentID int64, depth int, out *[]entities.Message) error {
	if depth >= maxThreadDepth {
		return fmt.Errorf("thread deeper than %d levels under message %d", maxThreadDepth, parentID)
	}
	children, err := t.messages.ListChildren(ctx, parentID)
	if err != nil {
		return err
	}
	for _, child := range children {
		*out = append(*out, child)
		if err := t.collect(ctx, child.ID, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}
