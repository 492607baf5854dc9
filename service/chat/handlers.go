package chat

import (
	"context"
	"strings"

	"BProject/logger"
	errs "BProject/tools/errs"
)

// dispatch routes one inbound frame. Every handler boundary is a catch
// boundary: nothing that happens in here may take the connection down.
func (s *Server) dispatch(wc *WsConn, frame *Frame) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[gateway] handler panic event=%s conn=%s: %v", frame.Event, wc.ID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()

	if !wc.Authorized {
		switch frame.Event {
		case EventAuthenticate:
			s.handleAuthenticate(ctx, wc, frame)
		case EventSendMessage:
			s.sendTo(wc, EventMessagingError, ErrorPayload{Error: errs.ErrAuthRequired.Msg})
		default:
			logger.Debugf("[gateway] pre-auth event ignored event=%s conn=%s", frame.Event, wc.ID)
		}
		return
	}

	switch frame.Event {
	case EventAuthenticate:
		// already authenticated; re-ack with the current identity
		s.sendTo(wc, EventAuthenticated, UserView{ID: wc.UserID, Username: wc.Username})
	case EventSendMessage:
		s.handleSendMessage(ctx, wc, frame)
	case EventJoinConversation:
		s.handleJoinConversation(ctx, wc, frame)
	case EventLeaveConversation:
		s.handleLeaveConversation(wc, frame)
	case EventMarkMessageRead:
		s.handleMarkRead(ctx, wc, frame)
	case EventStartTyping:
		s.handleTyping(ctx, wc, frame, true)
	case EventStopTyping:
		s.handleTyping(ctx, wc, frame, false)
	case EventUpdateStatus:
		s.handleUpdateStatus(wc, frame)
	default:
		logger.Debugf("[gateway] unknown event=%s conn=%s", frame.Event, wc.ID)
	}
}

func (s *Server) handleAuthenticate(ctx context.Context, wc *WsConn, frame *Frame) {
	p, err := DecodePayload[AuthenticatePayload](frame.Data)
	if err != nil || p.Token == "" {
		s.sendTo(wc, EventAuthenticationError, ErrorPayload{Error: "authentication token required"})
		return
	}
	ident, err := s.verifier.Verify(ctx, p.Token)
	if err != nil {
		logger.Warnf("[gateway] fallback auth failed conn=%s: %v", wc.ID, err)
		s.sendTo(wc, EventAuthenticationError, ErrorPayload{Error: "Authentication failed"})
		return
	}
	s.finishAuth(wc, ident)
	s.sendTo(wc, EventAuthenticated, UserView{ID: ident.UserID, Username: ident.Username})
}

func (s *Server) handleSendMessage(ctx context.Context, wc *WsConn, frame *Frame) {
	p, err := DecodePayload[SendMessagePayload](frame.Data)
	if err != nil {
		s.sendTo(wc, EventMessagingError, ErrorPayload{Error: "malformed sendMessage payload"})
		return
	}
	if _, err := s.SendMessage(ctx, wc.UserID, *p); err != nil {
		s.sendTo(wc, EventMessagingError, ErrorPayload{Error: messagingErrorText(err)})
	}
}

// SendMessage runs the central messaging operation against the gateway's own
// stores and room fan-out.
func (s *Server) SendMessage(ctx context.Context, senderID string, p SendMessagePayload) (*NewMessagePayload, error) {
	return DeliverMessage(ctx, s.convs, s.users, s, s.relay, senderID, p)
}

// DeliverMessage is the central messaging operation, shared by the socket
// handler and the REST entry path so both emit identical events.
//
// Addressing: exactly one of ConversationID/RecipientID. With a conversation
// id the sender must be a participant; with a recipient id an existing
// conversation between the pair is reused, otherwise created. The message is
// persisted with the read-by set seeded with the sender, the conversation's
// last-message pointer is advanced, and the newMessage event goes to the
// conversation room plus every other participant's personal room.
func DeliverMessage(ctx context.Context, convs ConversationStore, users UserStore, emit Emitter, relay EventRelay, senderID string, p SendMessagePayload) (*NewMessagePayload, error) {
	content := strings.TrimSpace(p.Content)
	if len(content) == 0 || len(content) > maxContentLength {
		return nil, errs.ErrBadContent
	}
	if (p.ConversationID == "") == (p.RecipientID == "") {
		return nil, errs.ErrBadAddressing
	}

	var conv *Conversation
	var err error
	switch {
	case p.ConversationID != "":
		conv, err = convs.FindByID(ctx, p.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil || !conv.HasParticipant(senderID) {
			return nil, errs.ErrConvNotFound
		}
	default:
		conv, err = convs.FindByParticipants(ctx, senderID, p.RecipientID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			conv, err = convs.Create(ctx, senderID, p.RecipientID)
			if err != nil {
				return nil, err
			}
		}
	}

	msg, err := convs.AppendMessage(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, err
	}
	if err := convs.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		return nil, err
	}
	conv.LastMessageID = msg.ID

	payload := composeNewMessagePayload(ctx, users, conv, msg)

	emit.ToConversation(conv.ID, EventNewMessage, payload)
	for _, participantID := range conv.Participants {
		if participantID != senderID {
			emit.ToUser(participantID, EventNewMessage, payload)
		}
	}

	if relay != nil {
		if err := relay.Publish(SubjectMessageNew, payload); err != nil {
			logger.Warnf("[gateway] relay newMessage conv=%s: %v", conv.ID, err)
		}
	}
	return payload, nil
}

// composeNewMessagePayload resolves display data for the sender and the
// participants. Read-only enrichment: lookup failures degrade to bare ids
// and never block delivery.
func composeNewMessagePayload(ctx context.Context, users UserStore, conv *Conversation, msg *Message) *NewMessagePayload {
	view := MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		ReadBy:         msg.ReadBy,
		SentAt:         msg.SentAt,
	}
	convView := ConversationView{
		ID:            conv.ID,
		LastMessageID: conv.LastMessageID,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
	}
	for _, pid := range conv.Participants {
		uv := UserView{ID: pid}
		if users != nil {
			if display, err := users.FindDisplay(ctx, pid); err != nil {
				logger.Warnf("[gateway] display lookup user=%s: %v", pid, err)
			} else if display != nil {
				uv = *display
			}
		}
		if pid == msg.SenderID {
			sender := uv
			view.Sender = &sender
		}
		convView.Participants = append(convView.Participants, uv)
	}
	return &NewMessagePayload{Message: view, Conversation: convView}
}

// handleMarkRead resolves message then conversation; missing documents and
// non-participants are silent no-ops toward the client (logged). Only the
// first read by a user persists and emits; repeats are no-ops.
func (s *Server) handleMarkRead(ctx context.Context, wc *WsConn, frame *Frame) {
	p, err := DecodePayload[MarkReadPayload](frame.Data)
	if err != nil || p.MessageID == "" {
		return
	}
	msg, err := s.convs.FindMessage(ctx, p.MessageID)
	if err != nil {
		logger.Errorf("[gateway] markRead find message=%s: %v", p.MessageID, err)
		return
	}
	if msg == nil {
		return
	}
	conv, err := s.convs.FindByID(ctx, msg.ConversationID)
	if err != nil {
		logger.Errorf("[gateway] markRead find conversation=%s: %v", msg.ConversationID, err)
		return
	}
	if conv == nil {
		return
	}
	if !conv.HasParticipant(wc.UserID) {
		logger.Warnf("[gateway] markRead rejected: user=%s not in conversation=%s", wc.UserID, conv.ID)
		return
	}
	if msg.ReadByUser(wc.UserID) {
		return
	}
	if err := s.convs.MarkRead(ctx, msg.ID, wc.UserID); err != nil {
		logger.Errorf("[gateway] markRead persist message=%s user=%s: %v", msg.ID, wc.UserID, err)
		return
	}
	// read receipts matter only to participants watching the thread
	s.ToConversation(conv.ID, EventMessageRead, MessageReadPayload{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		ReadBy:         wc.UserID,
	})
}

// handleJoinConversation authorizes against the store on every attempt;
// unauthorized joins are silently ignored (logged).
func (s *Server) handleJoinConversation(ctx context.Context, wc *WsConn, frame *Frame) {
	p, err := DecodePayload[ConversationPayload](frame.Data)
	if err != nil || p.ConversationID == "" {
		return
	}
	conv, err := s.convs.FindByID(ctx, p.ConversationID)
	if err != nil {
		logger.Errorf("[gateway] join find conversation=%s: %v", p.ConversationID, err)
		return
	}
	if conv == nil || !conv.HasParticipant(wc.UserID) {
		logger.Warnf("[gateway] join rejected: user=%s conversation=%s", wc.UserID, p.ConversationID)
		return
	}
	s.rooms.Join(ConversationRoom(conv.ID), wc)
}

// leave is unconditional.
func (s *Server) handleLeaveConversation(wc *WsConn, frame *Frame) {
	p, err := DecodePayload[ConversationPayload](frame.Data)
	if err != nil || p.ConversationID == "" {
		return
	}
	s.rooms.Leave(ConversationRoom(p.ConversationID), wc)
}

func (s *Server) handleTyping(ctx context.Context, wc *WsConn, frame *Frame, start bool) {
	p, err := DecodePayload[ConversationPayload](frame.Data)
	if err != nil || p.ConversationID == "" {
		return
	}
	if start {
		err = s.typing.StartTyping(ctx, p.ConversationID, wc.UserID, wc.Username, wc.ID)
	} else {
		err = s.typing.StopTyping(ctx, p.ConversationID, wc.UserID, wc.Username, wc.ID)
	}
	if err != nil {
		logger.Errorf("[gateway] typing conversation=%s user=%s: %v", p.ConversationID, wc.UserID, err)
	}
}

// Unknown status values are dropped without a reply; messagingError is
// scoped to messaging failures.
func (s *Server) handleUpdateStatus(wc *WsConn, frame *Frame) {
	p, err := DecodePayload[StatusPayload](frame.Data)
	if err != nil || !p.Status.Valid() {
		logger.Warnf("[gateway] bad status ignored user=%s conn=%s", wc.UserID, wc.ID)
		return
	}
	s.presence.SetStatus(wc.UserID, p.Status)
}

func messagingErrorText(err error) string {
	if ce, ok := err.(*errs.CodeError); ok {
		return ce.Msg
	}
	logger.Errorf("[gateway] messaging store failure: %v", err)
	return errs.ErrStoreFailure.Msg
}
