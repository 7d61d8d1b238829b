package groutine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGo_PropagatesName(t *testing.T) {
	names := make(chan string, 1)

	//nolint:staticcheck // nil parent context is part of the contract
	Go(nil, "biscuit-worker", func(ctx context.Context) {
		names <- GetName(ctx)
	})

	assert.Equal(t, "biscuit-worker", <-names)
}

func TestGetName_NoName(t *testing.T) {
	assert.Equal(t, "", GetName(context.Background()))
}
