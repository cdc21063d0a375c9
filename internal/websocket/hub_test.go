package websocket

import (
	"context"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SendReachesOnlyWatchersOfTheJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	watching := &Client{Hub: hub, JobID: "job-1", Send: make(chan []byte, 4)}
	other := &Client{Hub: hub, JobID: "job-2", Send: make(chan []byte, 4)}
	hub.register <- watching
	hub.register <- other
	require.Eventually(t, func() bool { return hub.Watchers("job-1") == 1 && hub.Watchers("job-2") == 1 }, time.Second, 5*time.Millisecond)

	hub.Send("job-1", map[string]int{"percent": 40})

	select {
	case msg := <-watching.Send:
		assert.JSONEq(t, `{"percent":40}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("watcher got nothing")
	}
	assert.Empty(t, other.Send)

	hub.unregister <- watching
	require.Eventually(t, func() bool { return hub.Watchers("job-1") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-watching.Send
	assert.False(t, open)
}
