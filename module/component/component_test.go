package component_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestComponentManager_ReadyAndDone(t *testing.T) {
	release := make(chan struct{})
	cm := component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			<-release
			ready()
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()
	cm.Start(ctx)

	select {
	case <-cm.Ready():
		t.Fatal("ready before every worker called ready")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	unittest.RequireCloseBefore(t, cm.Ready(), time.Second, "component not ready")

	cancel()
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "component not done")

	assert.PanicsWithValue(t, component.ErrMultipleStartup, func() { cm.Start(ctx) })
}

func TestComponentManager_ThrowsToParent(t *testing.T) {
	expected := errors.New("fatal")
	cm := component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			ctx.Throw(expected)
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(parent)
	cm.Start(signalerCtx)

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, expected)
	case <-time.After(time.Second):
		t.Fatal("error was not thrown to the parent")
	}
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "workers were not cancelled")
}
