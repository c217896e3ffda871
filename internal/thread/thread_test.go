package thread_test

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"complaintdesk/backend/internal/storage/storagemock"
	"complaintdesk/backend/internal/storage/storagetest"
	"complaintdesk/backend/internal/thread"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	student = identity.Identity{UserID: "student-1", Role: models.RoleStudent}
	other   = identity.Identity{UserID: "student-2", Role: models.RoleStudent}
	staff   = identity.Identity{UserID: "staff-1", Role: models.RoleStaff}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *storage.Service
	hub       *chathub.Hub
	svc       *thread.Service
	complaint *models.Complaint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storagetest.New(t)
	hub := chathub.NewHub(chathub.NewMemoryBroker(64), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := &models.Complaint{
		Title:       "Wifi down",
		Description: "No connection in block B",
		Category:    models.CategoryTechnical,
		UserID:      student.UserID,
	}
	require.NoError(t, store.CreateComplaint(context.Background(), c))

	return &fixture{
		store:     store,
		hub:       hub,
		svc:       thread.NewService(store, hub, quietLogger()),
		complaint: c,
	}
}

func next(t *testing.T, sess *thread.Session) models.LiveEvent {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		require.True(t, ok, "session closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
		return models.LiveEvent{}
	}
}

func assertQuiet(t *testing.T, sess *thread.Session) {
	t.Helper()
	select {
	case ev := <-sess.Events():
		t.Fatalf("unexpected live event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPost_LiveDeliveryToOtherViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Watch(ctx, student, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()
	assert.Empty(t, sess.Initial)

	posted, err := f.svc.Post(ctx, staff, f.complaint.ID, "ping")
	require.NoError(t, err)
	require.NotNil(t, posted)
	assert.True(t, posted.IsStaffResponse)
	assert.Equal(t, staff.UserID, posted.UserID)

	ev := next(t, sess)
	assert.Equal(t, models.EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "ping", ev.Message.Message)
	assert.Equal(t, posted.ID, ev.Message.ID)
	assert.True(t, ev.Message.IsStaffResponse)
	assertQuiet(t, sess)
}

func TestPost_StudentMessageIsNotStaffResponse(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.Post(context.Background(), student, f.complaint.ID, "  any update?  ")
	require.NoError(t, err)
	assert.False(t, msg.IsStaffResponse)
	assert.Equal(t, "any update?", msg.Message)
}

func TestPost_BlankTextIsNoop(t *testing.T) {
	store := new(storagemock.MockStorage)
	svc := thread.NewService(store, chathub.NewHub(chathub.NewMemoryBroker(1), quietLogger()), quietLogger())

	for _, text := range []string{"", "   ", "\n\t"} {
		msg, err := svc.Post(context.Background(), staff, "c1", text)
		assert.NoError(t, err)
		assert.Nil(t, msg)
	}
	store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "GetComplaintByID", mock.Anything, mock.Anything)
}

func TestPost_StudentCannotPostOnOthersComplaint(t *testing.T) {
	store := new(storagemock.MockStorage)
	store.On("GetComplaintByID", mock.Anything, "c1").
		Return(&models.Complaint{ID: "c1", UserID: student.UserID}, nil)
	svc := thread.NewService(store, nil, quietLogger())

	_, err := svc.Post(context.Background(), other, "c1", "hello")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestPost_UnknownComplaint(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Post(context.Background(), staff, "missing", "hello")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type failingLive struct{}

func (failingLive) Publish(context.Context, models.LiveEvent) error {
	return errors.New("redis down")
}

func (failingLive) Subscribe(context.Context, string) (*chathub.Subscription, error) {
	return nil, errors.New("redis down")
}

func TestPost_PublishFailureDoesNotFailPost(t *testing.T) {
	store := new(storagemock.MockStorage)
	store.On("GetComplaintByID", mock.Anything, "c1").
		Return(&models.Complaint{ID: "c1", UserID: student.UserID}, nil)
	store.On("SaveMessage", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)
	svc := thread.NewService(store, failingLive{}, quietLogger())

	msg, err := svc.Post(context.Background(), student, "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)
	store.AssertExpectations(t)
}

func TestWatch_ReloadEqualsInitialPlusLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Post(ctx, student, f.complaint.ID, "first")
	require.NoError(t, err)

	sess, err := f.svc.Watch(ctx, staff, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()
	require.Len(t, sess.Initial, 1)

	var live []models.Message
	for _, text := range []string{"second", "third", "fourth"} {
		author := staff
		if text == "third" {
			author = student
		}
		_, err := f.svc.Post(ctx, author, f.complaint.ID, text)
		require.NoError(t, err)
		ev := next(t, sess)
		live = append(live, *ev.Message)
	}

	reload, err := f.svc.Load(ctx, staff, f.complaint.ID)
	require.NoError(t, err)

	var joined []string
	for _, m := range append(append([]models.Message{}, sess.Initial...), live...) {
		joined = append(joined, m.ID)
	}
	var reloaded []string
	for _, m := range reload {
		reloaded = append(reloaded, m.ID)
	}
	assert.Equal(t, reloaded, joined)
}

func TestWatch_DropsDuplicatesOfInitialLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Post(ctx, student, f.complaint.ID, "first")
	require.NoError(t, err)

	sess, err := f.svc.Watch(ctx, student, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()

	// Redelivery of an already loaded message, as an at-least-once broker may do.
	require.NoError(t, f.hub.Publish(ctx, models.MessageEvent(*first)))
	second, err := f.svc.Post(ctx, staff, f.complaint.ID, "second")
	require.NoError(t, err)
	require.NoError(t, f.hub.Publish(ctx, models.MessageEvent(*second)))

	ev := next(t, sess)
	assert.Equal(t, second.ID, ev.Message.ID)
	assertQuiet(t, sess)
}

func TestWatch_PassesComplaintEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Watch(ctx, student, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()

	updated := *f.complaint
	updated.Status = models.StatusInProgress
	require.NoError(t, f.hub.Publish(ctx, models.ComplaintEvent(updated)))

	ev := next(t, sess)
	assert.Equal(t, models.EventComplaint, ev.Type)
	assert.Equal(t, models.StatusInProgress, ev.Complaint.Status)
}

func TestWatch_StudentCannotWatchOthersComplaint(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Watch(context.Background(), other, f.complaint.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestSession_CloseEndsEvents(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Watch(context.Background(), student, f.complaint.ID)
	require.NoError(t, err)

	sess.Close()
	sess.Close()

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func (f *fixture) save(t *testing.T, author identity.Identity, text string) *models.Message {
	t.Helper()
	m := &models.Message{ComplaintID: f.complaint.ID, UserID: author.UserID, Message: text, IsStaffResponse: author.IsStaff()}
	require.NoError(t, f.store.SaveMessage(context.Background(), m))
	return m
}

// Two posters can publish in the opposite order of their writes; viewers
// still see thread order.
func TestWatch_ReordersOutOfOrderDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Watch(ctx, staff, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()

	first := f.save(t, student, "first")
	second := f.save(t, staff, "second")
	require.NoError(t, f.hub.Publish(ctx, models.MessageEvent(*second)))
	require.NoError(t, f.hub.Publish(ctx, models.MessageEvent(*first)))

	assert.Equal(t, first.ID, next(t, sess).Message.ID)
	assert.Equal(t, second.ID, next(t, sess).Message.ID)
	assertQuiet(t, sess)

	reload, err := f.svc.Load(ctx, staff, f.complaint.ID)
	require.NoError(t, err)
	require.Len(t, reload, 2)
	assert.Equal(t, []string{first.ID, second.ID}, []string{reload[0].ID, reload[1].ID})
}

func TestWatch_FillsLostDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Watch(ctx, student, f.complaint.ID)
	require.NoError(t, err)
	defer sess.Close()

	var saved []string
	for _, text := range []string{"one", "two", "three"} {
		saved = append(saved, f.save(t, staff, text).ID)
	}
	last, err := f.svc.Post(ctx, student, f.complaint.ID, "four")
	require.NoError(t, err)
	saved = append(saved, last.ID)

	var got []string
	for range saved {
		got = append(got, next(t, sess).Message.ID)
	}
	assert.Equal(t, saved, got)
	assertQuiet(t, sess)
}

func TestWatch_CatchUpFailureEndsSession(t *testing.T) {
	store := new(storagemock.MockStorage)
	hub := chathub.NewHub(chathub.NewMemoryBroker(8), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	store.On("GetComplaintByID", mock.Anything, "c1").
		Return(&models.Complaint{ID: "c1", UserID: student.UserID}, nil)
	store.On("GetMessages", mock.Anything, "c1").Return([]models.Message{}, nil).Once()
	store.On("GetMessages", mock.Anything, "c1").Return(nil, errors.New("db down")).Once()
	svc := thread.NewService(store, hub, quietLogger())

	sess, err := svc.Watch(ctx, student, "c1")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, hub.Publish(ctx, models.MessageEvent(models.Message{ID: "m5", ComplaintID: "c1", Seq: 5})))

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("session not closed after failed catch-up")
	}
}
