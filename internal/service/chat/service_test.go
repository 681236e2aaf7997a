package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
)

func TestSubmitStreamsPendingAnswerToCompletion(t *testing.T) {
	h := newHarness(t, true)
	session := h.provider.current()
	session.script("What is 2+2?", reply{progress: []string{"4"}, final: "4"})
	release := session.gate("What is 2+2?")

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	require.NoError(t, h.svc.SetSearchText(context.Background(), "What is 2+2?"))

	pending, err := h.svc.Submit(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.False(t, pending.Done)
	assert.Empty(t, pending.Answer)
	assert.Empty(t, pending.PartialAnswer)
	assert.NotEmpty(t, pending.ID)

	view := h.view(t)
	assert.True(t, view.IsLoading)
	assert.Equal(t, pending.ID, view.SelectedID)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "#1", view.Items[0].Accessory)
	assert.False(t, view.HasAction(ActionCopyAnswer), "answer actions are hidden while loading")

	release()
	h.svc.Wait()

	done, err := h.svc.Answer(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, done.Done)
	assert.Equal(t, "4", done.Answer)
	assert.Equal(t, "4", done.PartialAnswer)
	assert.Equal(t, pending.ID, done.ID)
	assert.Equal(t, pending.CreatedAt, done.CreatedAt)

	view = h.view(t)
	assert.False(t, view.IsLoading)
	assert.Empty(t, view.SearchText, "search text is cleared on completion")
	assert.Equal(t, "4", view.Items[0].Markdown)
	assert.True(t, view.HasAction(ActionSaveAnswer))

	started := waitFor(t, events, notificationTitled("Getting your answer..."))
	assert.Equal(t, answer.StyleAnimated, started.Notification.Style)
	finished := waitFor(t, events, notificationTitled("Got your answer!"))
	assert.Equal(t, answer.StyleSuccess, finished.Notification.Style)
	assert.Equal(t, started.Notification.ID, finished.Notification.ID)
}

func TestSubmitPublishesPartialProgress(t *testing.T) {
	h := newHarness(t, true)
	h.provider.current().script("count", reply{progress: []string{"one", "one two"}, final: "one two three"})

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	pending, err := h.svc.Submit(context.Background(), "count")
	require.NoError(t, err)

	ev := waitFor(t, events, func(ev Event) bool {
		return ev.Type == EventAnswer && ev.Answer.PartialAnswer == "one two"
	})
	assert.Equal(t, pending.ID, ev.Answer.ID)
	assert.False(t, ev.Answer.Done)

	ev = waitFor(t, events, func(ev Event) bool { return ev.Type == EventAnswer && ev.Answer.Done })
	assert.Equal(t, "one two three", ev.Answer.Answer)
}

func TestSubmitRejectsUnauthenticatedSession(t *testing.T) {
	h := newHarness(t, false)

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	_, err := h.svc.Submit(context.Background(), "hello")
	require.ErrorIs(t, err, ErrUnauthenticated)

	view := h.view(t)
	assert.Empty(t, view.Items)
	assert.False(t, view.IsLoading)

	started := waitFor(t, events, notificationTitled("Getting your answer..."))
	failed := waitFor(t, events, notificationTitled("Your session token is invalid!"))
	assert.Equal(t, answer.StyleFailure, failed.Notification.Style)
	assert.Equal(t, started.Notification.ID, failed.Notification.ID)
}

func TestSubmitFailureKeepsPartialAnswer(t *testing.T) {
	h := newHarness(t, true)
	h.provider.current().script("q", reply{progress: []string{"half"}, err: errBoom})

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	pending, err := h.svc.Submit(context.Background(), "q")
	require.NoError(t, err)
	h.svc.Wait()

	got, err := h.svc.Answer(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.False(t, got.Done)
	assert.Equal(t, "half", got.PartialAnswer)
	assert.Equal(t, "half", got.Text())

	view := h.view(t)
	assert.False(t, view.IsLoading, "a failed send no longer counts as loading")

	failed := waitFor(t, events, notificationTitled("Error"))
	assert.Equal(t, answer.StyleFailure, failed.Notification.Style)
	assert.Equal(t, "boom", failed.Notification.Message)
}

func TestConcurrentSubmissionsHaveUniqueIDs(t *testing.T) {
	h := newHarness(t, true)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := h.svc.Submit(context.Background(), fmt.Sprintf("question %d", i))
			if assert.NoError(t, err) {
				ids <- a.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)
	h.svc.Wait()

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	view := h.view(t)
	require.Len(t, view.Items, n)
	for _, item := range view.Items {
		assert.True(t, item.Done)
		assert.Equal(t, "answer to "+item.Question, item.Markdown)
	}
}

func TestResetStartsNewConversation(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	first := h.view(t).ConversationID
	_, err := h.svc.Submit(ctx, "before")
	require.NoError(t, err)
	h.svc.Wait()

	release := h.provider.current().gate("slow")
	_, err = h.svc.Submit(ctx, "slow")
	require.NoError(t, err)
	require.NoError(t, h.svc.SetSearchText(ctx, "typing"))

	second, err := h.svc.Reset(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	release()
	h.svc.Wait()

	view := h.view(t)
	assert.Equal(t, second, view.ConversationID)
	assert.Empty(t, view.Items, "late answers from the old conversation are dropped")
	assert.Empty(t, view.SearchText)
	assert.False(t, view.IsLoading)
	assert.Empty(t, view.SelectedID)
	assert.Len(t, h.provider.sessions, 2)

	next, err := h.svc.Submit(ctx, "after")
	require.NoError(t, err)
	assert.Equal(t, second, next.ConversationID)
}

func TestResetResolvesNoticeOfRunningSend(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	release := h.provider.current().gate("slow")
	_, err := h.svc.Submit(ctx, "slow")
	require.NoError(t, err)
	started := waitFor(t, events, notificationTitled("Getting your answer..."))

	_, err = h.svc.Reset(ctx)
	require.NoError(t, err)

	release()
	h.svc.Wait()

	resolved := waitFor(t, events, func(ev Event) bool {
		return ev.Type == EventNotification &&
			ev.Notification.ID == started.Notification.ID &&
			ev.Notification.Style != answer.StyleAnimated
	})
	assert.Equal(t, answer.StyleSuccess, resolved.Notification.Style)
	assert.Equal(t, "Got your answer!", resolved.Notification.Title)
	assert.Empty(t, h.view(t).Items, "the stale answer is not added to the new conversation")
}

func TestSubmitGivesUpAfterSendTimeout(t *testing.T) {
	h := newHarness(t, true)
	h.svc.sendTimeout = 50 * time.Millisecond
	ctx := context.Background()

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	release := h.provider.current().gate("hang")
	defer release()

	pending, err := h.svc.Submit(ctx, "hang")
	require.NoError(t, err)
	h.svc.Wait()

	failed := waitFor(t, events, notificationTitled("Error"))
	assert.Equal(t, answer.StyleFailure, failed.Notification.Style)
	assert.Contains(t, failed.Notification.Message, "deadline exceeded")

	got, err := h.svc.Answer(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, got.Done)
	assert.False(t, h.view(t).IsLoading)
}

func TestSaveAppendsFavorite(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.svc.Submit(ctx, "What is 2+2?")
	require.NoError(t, err)
	h.svc.Wait()

	before := len(h.svc.Favorites())
	fav, err := h.svc.Save(ctx, a.ID)
	require.NoError(t, err)

	favs := h.svc.Favorites()
	require.Len(t, favs, before+1)
	assert.Equal(t, a.ID, favs[len(favs)-1].ID)
	require.NotNil(t, fav.SavedAt)
	assert.False(t, fav.SavedAt.Before(fav.CreatedAt))

	raw, ok, err := h.backend.Get(ctx, "savedAnswers")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), a.ID)
}

func TestSaveUnknownAnswer(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.svc.Save(context.Background(), "missing")
	require.ErrorIs(t, err, ErrAnswerNotFound)
	assert.Empty(t, h.svc.Favorites())
}

func TestCopyWritesSelectedField(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.svc.Submit(ctx, "ping")
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, h.svc.Copy(ctx, a.ID, FieldAnswer))
	assert.Equal(t, "answer to ping", h.clipboard.Text())

	require.NoError(t, h.svc.Copy(ctx, a.ID, FieldQuestion))
	assert.Equal(t, "ping", h.clipboard.Text())

	assert.ErrorIs(t, h.svc.Copy(ctx, a.ID, Field("title")), ErrInvalidField)
	assert.ErrorIs(t, h.svc.Copy(ctx, "missing", FieldAnswer), ErrAnswerNotFound)
}

func TestSpeakAndStop(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.svc.Submit(ctx, "say hi")
	require.NoError(t, err)
	h.svc.Wait()

	audio, err := h.svc.Speak(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3:answer to say hi"), audio)

	h.svc.StopSpeaking()
	assert.Equal(t, 1, h.speaker.stopped)
}

func TestSpeakWithoutSpeaker(t *testing.T) {
	h := newHarness(t, true)
	h.svc.speaker = nil

	_, err := h.svc.Speak(context.Background(), "any")
	require.ErrorIs(t, err, ErrSpeechUnavailable)
	h.svc.StopSpeaking()
}

func TestExportSharesChronologicalConversation(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	for _, q := range []string{"first", "second", "third"} {
		_, err := h.svc.Submit(ctx, q)
		require.NoError(t, err)
		h.svc.Wait()
	}

	url, err := h.svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://shareg.pt/abc123", url)
	assert.Equal(t, url, h.clipboard.Text())

	require.Len(t, h.sharer.received, 3)
	assert.Equal(t, "first", h.sharer.received[0].Question)
	assert.Equal(t, "third", h.sharer.received[2].Question)

	ev := waitFor(t, events, notificationTitled("Copied link to clipboard!"))
	assert.Equal(t, url, ev.Notification.Message)
}

func TestExportEmptyConversation(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.svc.Export(context.Background())
	require.ErrorIs(t, err, ErrNothingToShare)
}

func TestExportFailureLeavesClipboardAlone(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.sharer.err = errBoom

	events, cancel := h.svc.Subscribe(0)
	defer cancel()

	_, err := h.svc.Submit(ctx, "q")
	require.NoError(t, err)
	h.svc.Wait()

	_, err = h.svc.Export(ctx)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, h.clipboard.Text())

	waitFor(t, events, notificationTitled("Error while sharing conversation"))
}

func TestSelect(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.svc.Submit(ctx, "one")
	require.NoError(t, err)
	b, err := h.svc.Submit(ctx, "two")
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, b.ID, h.view(t).SelectedID, "selection follows the latest submission")

	require.NoError(t, h.svc.Select(ctx, a.ID))
	assert.Equal(t, a.ID, h.view(t).SelectedID)

	require.ErrorIs(t, h.svc.Select(ctx, "missing"), ErrAnswerNotFound)
	assert.Equal(t, a.ID, h.view(t).SelectedID)
}

func TestMethodsFailAfterStop(t *testing.T) {
	provider := &fakeProvider{authenticated: true}
	svc, err := New(context.Background(), Options{Provider: provider, Favorites: &noFavorites{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = svc.Run(ctx)
	}()
	cancel()
	<-stopped

	_, err = svc.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	_, err = svc.Submit(context.Background(), "late")
	require.ErrorIs(t, err, ErrClosed)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)

	_, err = New(context.Background(), Options{Provider: &fakeProvider{err: errBoom}, Favorites: &noFavorites{}})
	require.ErrorIs(t, err, errBoom)
}

type noFavorites struct{}

func (noFavorites) Save(context.Context, answer.Answer, time.Time) (answer.Favorite, error) {
	return answer.Favorite{}, errBoom
}

func (noFavorites) List() []answer.Favorite { return nil }
