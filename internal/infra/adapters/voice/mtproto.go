package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"telegram-music-bot/internal/domain"
)

// callHandle identifies a group call on the server.
type callHandle struct {
	ID         int64
	AccessHash int64
}

// signaller joins and leaves group calls on behalf of the user account.
type signaller interface {
	JoinGroupCall(ctx context.Context, chatID int64, params string) (callHandle, string, error)
	LeaveGroupCall(ctx context.Context, call callHandle, ssrc uint32) error
}

// callAPI is the slice of the raw MTProto API the signaller uses.
type callAPI interface {
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error)
	MessagesGetDialogs(ctx context.Context, request *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
	PhoneJoinGroupCall(ctx context.Context, request *tg.PhoneJoinGroupCallRequest) (tg.UpdatesClass, error)
	PhoneLeaveGroupCall(ctx context.Context, request *tg.PhoneLeaveGroupCallRequest) (tg.UpdatesClass, error)
}

// Bot API ids for supergroups and channels are -100<channel id>.
const channelIDOffset = 1_000_000_000_000

type peerKind int

const (
	peerBasicChat peerKind = iota
	peerChannel
)

// splitChatID maps a Bot API chat id to the MTProto peer kind and bare id.
func splitChatID(chatID int64) (peerKind, int64, error) {
	switch {
	case chatID <= -channelIDOffset:
		return peerChannel, -chatID - channelIDOffset, nil
	case chatID < 0:
		return peerBasicChat, -chatID, nil
	default:
		return 0, 0, fmt.Errorf("%w: chat %d is a private chat", domain.ErrInvalidArgument, chatID)
	}
}

// MTProto is the user-account client that performs group call signalling.
type MTProto struct {
	client *telegram.Client
	api    callAPI
	log    *zerolog.Logger

	mu       sync.Mutex
	channels map[int64]*tg.InputChannel

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMTProto builds a client from a Telethon string session. Nothing touches
// the network until Start.
func NewMTProto(appID int, appHash, sessionString string, zl *zap.Logger, log *zerolog.Logger) (*MTProto, error) {
	data, err := session.TelethonSession(sessionString)
	if err != nil {
		return nil, fmt.Errorf("decode session string: %w", err)
	}
	storage := new(session.StorageMemory)
	if err := (&session.Loader{Storage: storage}).Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	l := log.With().Str("component", "mtproto").Logger()
	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: storage,
		Logger:         zl,
	})
	m := newSignaller(client.API(), &l)
	m.client = client
	return m, nil
}

func newSignaller(api callAPI, log *zerolog.Logger) *MTProto {
	return &MTProto{
		api:      api,
		log:      log,
		channels: make(map[int64]*tg.InputChannel),
	}
}

// Start connects and blocks until the session is authorised, or fails.
// The connection then lives until Close or until ctx is cancelled.
func (m *MTProto) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	ready := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		defer close(m.done)
		errc <- m.client.Run(runCtx, func(ctx context.Context) error {
			self, err := m.client.Self(ctx)
			if err != nil {
				return fmt.Errorf("session not authorised: %w", err)
			}
			m.log.Info().Int64("user_id", self.ID).Str("username", self.Username).Msg("user session ready")
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
		return nil
	case err := <-errc:
		cancel()
		if err == nil {
			err = errors.New("mtproto client exited before ready")
		}
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (m *MTProto) Close() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *MTProto) JoinGroupCall(ctx context.Context, chatID int64, params string) (callHandle, string, error) {
	call, err := m.activeCall(ctx, chatID)
	if err != nil {
		return callHandle{}, "", err
	}

	upd, err := m.api.PhoneJoinGroupCall(ctx, &tg.PhoneJoinGroupCallRequest{
		Call:   call,
		JoinAs: &tg.InputPeerSelf{},
		Params: tg.DataJSON{Data: params},
	})
	if err != nil {
		return callHandle{}, "", fmt.Errorf("phone.joinGroupCall: %w", err)
	}
	transport, err := connectionFromUpdates(upd)
	if err != nil {
		return callHandle{}, "", err
	}
	return callHandle{ID: call.ID, AccessHash: call.AccessHash}, transport, nil
}

func (m *MTProto) LeaveGroupCall(ctx context.Context, call callHandle, ssrc uint32) error {
	_, err := m.api.PhoneLeaveGroupCall(ctx, &tg.PhoneLeaveGroupCallRequest{
		Call:   tg.InputGroupCall{ID: call.ID, AccessHash: call.AccessHash},
		Source: int(int32(ssrc)),
	})
	if err != nil {
		return fmt.Errorf("phone.leaveGroupCall: %w", err)
	}
	return nil
}

// activeCall reads the chat's current voice chat from its full info.
func (m *MTProto) activeCall(ctx context.Context, chatID int64) (tg.InputGroupCall, error) {
	kind, id, err := splitChatID(chatID)
	if err != nil {
		return tg.InputGroupCall{}, err
	}
	var (
		call tg.InputGroupCall
		ok   bool
	)
	switch kind {
	case peerChannel:
		ch, err := m.inputChannel(ctx, id)
		if err != nil {
			return tg.InputGroupCall{}, err
		}
		full, err := m.api.ChannelsGetFullChannel(ctx, ch)
		if err != nil {
			return tg.InputGroupCall{}, fmt.Errorf("channels.getFullChannel: %w", err)
		}
		if cf, isChannel := full.FullChat.(*tg.ChannelFull); isChannel {
			call, ok = cf.GetCall()
		}
	case peerBasicChat:
		full, err := m.api.MessagesGetFullChat(ctx, id)
		if err != nil {
			return tg.InputGroupCall{}, fmt.Errorf("messages.getFullChat: %w", err)
		}
		if cf, isChat := full.FullChat.(*tg.ChatFull); isChat {
			call, ok = cf.GetCall()
		}
	}
	if !ok {
		return tg.InputGroupCall{}, fmt.Errorf("chat %d has no voice chat running: %w", chatID, domain.ErrNotFound)
	}
	return call, nil
}

// inputChannel returns the access-hashed peer for a channel the account is in.
// A cache miss walks the dialog list, caching every channel seen, until the
// channel turns up or the list ends.
func (m *MTProto) inputChannel(ctx context.Context, id int64) (*tg.InputChannel, error) {
	m.mu.Lock()
	ch, ok := m.channels[id]
	m.mu.Unlock()
	if ok {
		return ch, nil
	}

	req := &tg.MessagesGetDialogsRequest{OffsetPeer: &tg.InputPeerEmpty{}, Limit: dialogPageSize}
	for page := 0; page < maxDialogPages; page++ {
		res, err := m.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("messages.getDialogs: %w", err)
		}
		pg, ok := dialogPageOf(res)
		if !ok {
			break
		}
		m.cacheChannels(pg.chats)
		if ch, ok := m.cachedChannel(id); ok {
			return ch, nil
		}
		if !pg.more || len(pg.dialogs) < dialogPageSize {
			break
		}
		next, ok := nextDialogOffset(pg)
		if !ok {
			break
		}
		req = next
	}
	return nil, fmt.Errorf("channel %d not joined by the user account: %w", id, domain.ErrNotFound)
}

const (
	dialogPageSize = 100
	maxDialogPages = 20
)

func (m *MTProto) cacheChannels(chats []tg.ChatClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chats {
		if channel, isChannel := c.(*tg.Channel); isChannel {
			m.channels[channel.ID] = &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
		}
	}
}

func (m *MTProto) cachedChannel(id int64) (*tg.InputChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	return ch, ok
}

type dialogPage struct {
	dialogs  []tg.DialogClass
	messages []tg.MessageClass
	chats    []tg.ChatClass
	users    []tg.UserClass
	more     bool // a slice result; further pages may exist
}

func dialogPageOf(res tg.MessagesDialogsClass) (dialogPage, bool) {
	switch r := res.(type) {
	case *tg.MessagesDialogs:
		return dialogPage{dialogs: r.Dialogs, messages: r.Messages, chats: r.Chats, users: r.Users}, true
	case *tg.MessagesDialogsSlice:
		return dialogPage{dialogs: r.Dialogs, messages: r.Messages, chats: r.Chats, users: r.Users, more: true}, true
	default:
		return dialogPage{}, false
	}
}

// nextDialogOffset builds the request for the page after pg, keyed on the
// last dialog's top message.
func nextDialogOffset(pg dialogPage) (*tg.MessagesGetDialogsRequest, bool) {
	if len(pg.dialogs) == 0 {
		return nil, false
	}
	last, ok := pg.dialogs[len(pg.dialogs)-1].(*tg.Dialog)
	if !ok {
		return nil, false
	}

	date := 0
	for _, msg := range pg.messages {
		switch mm := msg.(type) {
		case *tg.Message:
			if mm.ID == last.TopMessage && samePeer(mm.PeerID, last.Peer) {
				date = mm.Date
			}
		case *tg.MessageService:
			if mm.ID == last.TopMessage && samePeer(mm.PeerID, last.Peer) {
				date = mm.Date
			}
		}
	}

	var peer tg.InputPeerClass
	switch p := last.Peer.(type) {
	case *tg.PeerChannel:
		for _, c := range pg.chats {
			if ch, isChannel := c.(*tg.Channel); isChannel && ch.ID == p.ChannelID {
				peer = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
			}
		}
	case *tg.PeerChat:
		peer = &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerUser:
		for _, u := range pg.users {
			if user, isUser := u.(*tg.User); isUser && user.ID == p.UserID {
				peer = &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
			}
		}
	}
	if peer == nil {
		return nil, false
	}
	return &tg.MessagesGetDialogsRequest{
		OffsetDate: date,
		OffsetID:   last.TopMessage,
		OffsetPeer: peer,
		Limit:      dialogPageSize,
	}, true
}

func samePeer(a, b tg.PeerClass) bool {
	switch x := a.(type) {
	case *tg.PeerChannel:
		y, ok := b.(*tg.PeerChannel)
		return ok && x.ChannelID == y.ChannelID
	case *tg.PeerChat:
		y, ok := b.(*tg.PeerChat)
		return ok && x.ChatID == y.ChatID
	case *tg.PeerUser:
		y, ok := b.(*tg.PeerUser)
		return ok && x.UserID == y.UserID
	}
	return false
}

// connectionFromUpdates finds the transport JSON in a joinGroupCall result.
func connectionFromUpdates(upd tg.UpdatesClass) (string, error) {
	var list []tg.UpdateClass
	switch u := upd.(type) {
	case *tg.Updates:
		list = u.Updates
	case *tg.UpdatesCombined:
		list = u.Updates
	case *tg.UpdateShort:
		list = []tg.UpdateClass{u.Update}
	}
	for _, x := range list {
		if c, ok := x.(*tg.UpdateGroupCallConnection); ok && !c.Presentation {
			return c.Params.Data, nil
		}
	}
	return "", errors.New("joinGroupCall returned no connection params")
}
