//go:build !integration

package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
)

type fakeCallAPI struct {
	pages        []tg.MessagesDialogsClass
	dialogReqs   []*tg.MessagesGetDialogsRequest
	channelCalls map[int64]tg.InputGroupCall // by channel id
	chatCalls    map[int64]tg.InputGroupCall // by basic chat id
	fullChannel  []*tg.InputChannel
	joined       *tg.PhoneJoinGroupCallRequest
	left         *tg.PhoneLeaveGroupCallRequest
}

func (f *fakeCallAPI) ChannelsGetFullChannel(_ context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	ch := channel.(*tg.InputChannel)
	f.fullChannel = append(f.fullChannel, ch)
	full := &tg.ChannelFull{ID: ch.ChannelID}
	if call, ok := f.channelCalls[ch.ChannelID]; ok {
		full.SetCall(call)
	}
	return &tg.MessagesChatFull{FullChat: full}, nil
}

func (f *fakeCallAPI) MessagesGetFullChat(_ context.Context, chatID int64) (*tg.MessagesChatFull, error) {
	full := &tg.ChatFull{ID: chatID}
	if call, ok := f.chatCalls[chatID]; ok {
		full.SetCall(call)
	}
	return &tg.MessagesChatFull{FullChat: full}, nil
}

func (f *fakeCallAPI) MessagesGetDialogs(_ context.Context, req *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error) {
	f.dialogReqs = append(f.dialogReqs, req)
	if len(f.pages) == 0 {
		return &tg.MessagesDialogs{}, nil
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

func (f *fakeCallAPI) PhoneJoinGroupCall(_ context.Context, req *tg.PhoneJoinGroupCallRequest) (tg.UpdatesClass, error) {
	f.joined = req
	return &tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateGroupCallConnection{Params: tg.DataJSON{Data: `{"transport":{"ufrag":"u"}}`}},
	}}, nil
}

func (f *fakeCallAPI) PhoneLeaveGroupCall(_ context.Context, req *tg.PhoneLeaveGroupCallRequest) (tg.UpdatesClass, error) {
	f.left = req
	return &tg.Updates{}, nil
}

// channelPage builds a full dialog page listing the given channels, each with
// one top message.
func channelPage(slice bool, ids ...int64) tg.MessagesDialogsClass {
	var (
		dialogs []tg.DialogClass
		msgs    []tg.MessageClass
		chats   []tg.ChatClass
	)
	for i, id := range ids {
		peer := &tg.PeerChannel{ChannelID: id}
		dialogs = append(dialogs, &tg.Dialog{Peer: peer, TopMessage: 10 + i})
		msgs = append(msgs, &tg.Message{ID: 10 + i, PeerID: peer, Date: 1000 - i})
		chats = append(chats, &tg.Channel{ID: id, AccessHash: id * 10, Title: "c"})
	}
	if slice {
		return &tg.MessagesDialogsSlice{Count: 1000, Dialogs: dialogs, Messages: msgs, Chats: chats}
	}
	return &tg.MessagesDialogs{Dialogs: dialogs, Messages: msgs, Chats: chats}
}

func fullPageOf(start int64) []int64 {
	ids := make([]int64, dialogPageSize)
	for i := range ids {
		ids[i] = start + int64(i)
	}
	return ids
}

func newTestSignaller(api callAPI) *MTProto {
	log := zerolog.Nop()
	return newSignaller(api, &log)
}

func TestInputChannel_WalksDialogPages(t *testing.T) {
	api := &fakeCallAPI{pages: []tg.MessagesDialogsClass{
		channelPage(true, fullPageOf(1)...),
		channelPage(false, 777),
	}}
	m := newTestSignaller(api)

	ch, err := m.inputChannel(context.Background(), 777)
	if err != nil {
		t.Fatalf("inputChannel: %v", err)
	}
	if ch.ChannelID != 777 || ch.AccessHash != 7770 {
		t.Fatalf("got %+v", ch)
	}
	if len(api.dialogReqs) != 2 {
		t.Fatalf("dialog requests = %d, want 2", len(api.dialogReqs))
	}
	next := api.dialogReqs[1]
	last := int64(dialogPageSize)
	if next.OffsetID != 10+dialogPageSize-1 || next.OffsetDate != 1000-(dialogPageSize-1) {
		t.Fatalf("offset = id %d date %d", next.OffsetID, next.OffsetDate)
	}
	if p, ok := next.OffsetPeer.(*tg.InputPeerChannel); !ok || p.ChannelID != last || p.AccessHash != last*10 {
		t.Fatalf("offset peer = %#v", next.OffsetPeer)
	}

	// cached now: no further lookups
	if _, err := m.inputChannel(context.Background(), 777); err != nil {
		t.Fatal(err)
	}
	if len(api.dialogReqs) != 2 {
		t.Fatal("cache miss on second lookup")
	}
}

func TestInputChannel_NotJoined(t *testing.T) {
	api := &fakeCallAPI{pages: []tg.MessagesDialogsClass{channelPage(false, 1, 2)}}
	m := newTestSignaller(api)

	if _, err := m.inputChannel(context.Background(), 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(api.dialogReqs) != 1 {
		t.Fatalf("a complete dialog list should be read once, got %d requests", len(api.dialogReqs))
	}
}

func TestActiveCall(t *testing.T) {
	call := tg.InputGroupCall{ID: 55, AccessHash: 66}

	t.Run("supergroup", func(t *testing.T) {
		api := &fakeCallAPI{
			pages:        []tg.MessagesDialogsClass{channelPage(false, 1234567890)},
			channelCalls: map[int64]tg.InputGroupCall{1234567890: call},
		}
		got, err := newTestSignaller(api).activeCall(context.Background(), -1001234567890)
		if err != nil {
			t.Fatalf("activeCall: %v", err)
		}
		if got != call {
			t.Fatalf("call = %+v", got)
		}
		if api.fullChannel[0].AccessHash != 12345678900 {
			t.Fatalf("full channel requested with hash %d", api.fullChannel[0].AccessHash)
		}
	})

	t.Run("basic group", func(t *testing.T) {
		api := &fakeCallAPI{chatCalls: map[int64]tg.InputGroupCall{4242: call}}
		got, err := newTestSignaller(api).activeCall(context.Background(), -4242)
		if err != nil || got != call {
			t.Fatalf("got %+v, %v", got, err)
		}
	})

	t.Run("no voice chat running", func(t *testing.T) {
		api := &fakeCallAPI{pages: []tg.MessagesDialogsClass{channelPage(false, 9)}}
		if _, err := newTestSignaller(api).activeCall(context.Background(), -1000000000009); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestJoinAndLeaveGroupCall(t *testing.T) {
	api := &fakeCallAPI{chatCalls: map[int64]tg.InputGroupCall{7: {ID: 1, AccessHash: 2}}}
	m := newTestSignaller(api)

	h, transport, err := m.JoinGroupCall(context.Background(), -7, `{"ssrc":1}`)
	if err != nil {
		t.Fatalf("JoinGroupCall: %v", err)
	}
	if h != (callHandle{ID: 1, AccessHash: 2}) || transport != `{"transport":{"ufrag":"u"}}` {
		t.Fatalf("got %+v %q", h, transport)
	}
	if api.joined.Params.Data != `{"ssrc":1}` {
		t.Fatalf("params = %q", api.joined.Params.Data)
	}

	if err := m.LeaveGroupCall(context.Background(), h, 3_000_000_000); err != nil {
		t.Fatalf("LeaveGroupCall: %v", err)
	}
	if api.left.Call.ID != 1 || api.left.Source != int(int32(-1294967296)) {
		t.Fatalf("leave request = %+v", api.left)
	}
}
