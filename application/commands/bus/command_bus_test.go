package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type renameCommand struct {
	Name string
}

func (c renameCommand) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestCommandBus_Send(t *testing.T) {
	var handled []string
	b := NewCommandBus()
	require.NoError(t, b.Register(renameCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		handled = append(handled, cmd.(renameCommand).Name)
		return nil
	})))

	require.NoError(t, b.Send(context.Background(), renameCommand{Name: "alpha"}))
	assert.Equal(t, []string{"alpha"}, handled)

	err := b.Send(context.Background(), renameCommand{})
	assert.ErrorContains(t, err, "command validation failed")
	assert.Len(t, handled, 1)
}

func TestCommandBus_Errors(t *testing.T) {
	sentinel := errors.New("boom")
	b := NewCommandBus(LoggingMiddleware(zap.NewNop()))

	err := b.Send(context.Background(), renameCommand{Name: "alpha"})
	assert.ErrorContains(t, err, "no handler registered")

	handler := CommandHandlerFunc(func(ctx context.Context, cmd Command) error { return sentinel })
	require.NoError(t, b.Register(renameCommand{}, handler))
	assert.Error(t, b.Register(renameCommand{}, handler))

	err = b.Send(context.Background(), renameCommand{Name: "alpha"})
	assert.ErrorIs(t, err, sentinel)
}

func TestCommandBus_MiddlewareOrder(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	b := NewCommandBus(trace("outer"), trace("inner"))
	require.NoError(t, b.Register(renameCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		order = append(order, "handler")
		return nil
	})))

	require.NoError(t, b.Send(context.Background(), renameCommand{Name: "alpha"}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
