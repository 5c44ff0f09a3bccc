package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

func setupTestFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	feed, err := NewFeed("redis://"+s.Addr(), logging.NewNoop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = feed.Close() })
	return feed, s
}

func TestNewFeedRejectsBadURL(t *testing.T) {
	_, err := NewFeed("not a url", nil)
	assert.Error(t, err)
}

func TestPublishReachesSubscriber(t *testing.T) {
	feed, _ := setupTestFeed(t)
	ctx := context.Background()
	channel := feed.ArtifactChannel("alice/26-02-w1/two-sum")

	received := make(chan model.Change, 1)
	sub, err := feed.Subscribe(ctx, channel, func(c model.Change) { received <- c })
	require.NoError(t, err)
	defer sub.Close()

	want := model.Change{Table: model.TableComments, Kind: model.ChangeInsert, Key: "alice/26-02-w1/two-sum", RecordID: "c1"}
	require.NoError(t, feed.Publish(ctx, channel, want))

	select {
	case got := <-received:
		assert.Equal(t, want.RecordID, got.RecordID)
		assert.Equal(t, want.Kind, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
}

func TestSubscriptionIsScopedToChannel(t *testing.T) {
	feed, _ := setupTestFeed(t)
	ctx := context.Background()

	received := make(chan model.Change, 4)
	sub, err := feed.Subscribe(ctx, feed.ArtifactChannel("a/b/c"), func(c model.Change) { received <- c })
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, feed.ArtifactChannel("x/y/z"), model.Change{RecordID: "other"}))
	require.NoError(t, feed.Publish(ctx, feed.ArtifactChannel("a/b/c"), model.Change{RecordID: "mine"}))

	select {
	case got := <-received:
		assert.Equal(t, "mine", got.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	feed, s := setupTestFeed(t)
	ctx := context.Background()
	channel := feed.InboxChannel("owner-id")

	received := make(chan model.Change, 4)
	sub, err := feed.Subscribe(ctx, channel, func(c model.Change) { received <- c })
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.Eventually(t, func() bool {
		return len(s.PubSubChannels("")) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, feed.Publish(ctx, channel, model.Change{RecordID: "late"}))
	select {
	case got := <-received:
		t.Fatalf("unexpected delivery after close: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMalformedPayloadIsSkipped(t *testing.T) {
	feed, s := setupTestFeed(t)
	ctx := context.Background()
	channel := feed.ArtifactChannel("a/b/c")

	received := make(chan model.Change, 4)
	sub, err := feed.Subscribe(ctx, channel, func(c model.Change) { received <- c })
	require.NoError(t, err)
	defer sub.Close()

	s.Publish(channel, "{not json")
	require.NoError(t, feed.Publish(ctx, channel, model.Change{RecordID: "ok"}))

	select {
	case got := <-received:
		assert.Equal(t, "ok", got.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
}
