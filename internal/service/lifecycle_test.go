package service

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/notify"
	appErrors "sudooom.im.chat/pkg/errors"
)

func newLifecycleFixture() (*fakeStore, *notify.Recorder, *ConversationLifecycle) {
	store := newFakeStore(userA, userB, userC)
	store.addConversation("C1", []string{userA.ID, userB.ID}, model.Message{ID: "M1", SenderID: userA.ID})
	bus := &notify.Recorder{}
	return store, bus, NewConversationLifecycle(store, bus)
}

func TestDeleteConversation_MemberDeletesAndNotifiesSnapshot(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()

	result, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userA))
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Count)
	assert.False(t, store.exists("C1"))

	removes := bus.ByEvent(model.EventConversationRemove)
	require.Len(t, removes, 2)
	keys := lo.Map(removes, func(n notify.Notification, _ int) string { return n.Channel.Key })
	assert.ElementsMatch(t, []string{userA.Email, userB.Email}, keys)

	for _, n := range removes {
		assert.Equal(t, notify.ChannelUser, n.Channel.Kind)
		conv, ok := n.Payload.(*model.Conversation)
		require.True(t, ok)
		assert.Equal(t, "C1", conv.ID)
		assert.ElementsMatch(t, []string{userA.ID, userB.ID}, conv.UserIDs)
		assert.Len(t, conv.Users, 2)
		assert.Empty(t, conv.Messages)
	}
}

func TestDeleteConversation_NonMemberIsNoOp(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()

	result, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userC))
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Count)
	assert.True(t, store.exists("C1"))
	assert.Empty(t, bus.ByEvent(model.EventConversationRemove))
}

func TestDeleteConversation_SnapshotSurvivesConcurrentMembershipChange(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()
	// B 在加载快照之后、删除之前被移出会话
	store.BeforeDelete = func() { store.removeMember("C1", userB.ID) }

	result, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userA))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Count)

	removes := bus.ByEvent(model.EventConversationRemove)
	require.Len(t, removes, 2)
	keys := lo.Map(removes, func(n notify.Notification, _ int) string { return n.Channel.Key })
	assert.ElementsMatch(t, []string{userA.Email, userB.Email}, keys)
}

func TestDeleteConversation_ActorRemovedMidFlightDoesNotDelete(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()
	store.BeforeDelete = func() { store.removeMember("C1", userA.ID) }

	result, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userA))
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Count)
	assert.True(t, store.exists("C1"))
	assert.Empty(t, bus.Published())
}

func TestDeleteConversation_Unauthorized(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()

	_, err := lifecycle.DeleteConversation(context.Background(), "C1", model.Identity{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	assert.True(t, store.exists("C1"))
	assert.Equal(t, 0, store.deleteCalls)
	assert.Empty(t, bus.Published())
}

func TestDeleteConversation_NotFound(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()

	_, err := lifecycle.DeleteConversation(context.Background(), "missing", identity(userA))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConversationNotFound))
	assert.Equal(t, 0, store.deleteCalls)
	assert.Empty(t, bus.Published())
}

func TestDeleteConversation_StoreFailure(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()
	store.DeleteErr = errors.New("statement timeout")

	_, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userA))
	require.Error(t, err)
	assert.Equal(t, appErrors.KindInternal, appErrors.KindOf(err))
	assert.True(t, store.exists("C1"))
	assert.Empty(t, bus.Published())
}

func TestDeleteConversation_PublishFailureDoesNotFailDelete(t *testing.T) {
	store, bus, lifecycle := newLifecycleFixture()
	bus.FailFor = func(ch notify.Channel, event string) error {
		if ch.Key == userA.Email {
			return errors.New("bus down")
		}
		return nil
	}

	result, err := lifecycle.DeleteConversation(context.Background(), "C1", identity(userA))
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Count)
	assert.Equal(t, 1, result.Notified)
	assert.False(t, store.exists("C1"))
	require.Len(t, bus.Published(), 1)
	assert.Equal(t, userB.Email, bus.Published()[0].Channel.Key)
}

func TestDeleteConversation_SkipsMembersWithoutContactAddress(t *testing.T) {
	noEmail := model.User{ID: "user-x", Name: "X"}
	store := newFakeStore(userA, noEmail)
	store.addConversation("C9", []string{userA.ID, noEmail.ID})
	bus := &notify.Recorder{}
	lifecycle := NewConversationLifecycle(store, bus)

	result, err := lifecycle.DeleteConversation(context.Background(), "C9", identity(userA))
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Count)
	require.Len(t, bus.Published(), 1)
	assert.Equal(t, userA.Email, bus.Published()[0].Channel.Key)
}
