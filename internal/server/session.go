package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/enforcer"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/plugins/builtin"
)

// Message types.
const (
	MessageLoad   = "load"
	MessageInsert = "insert"
	MessageSlash  = "slash"
	MessageApply  = "apply"
	MessageKey    = "key"

	ResponseState = "state"
	ResponseError = "error"
)

// Message is sent by the browser.
type Message struct {
	Type  string `json:"type"`
	HTML  string `json:"html,omitempty"`
	Index int    `json:"index,omitempty"`
	Item  string `json:"item,omitempty"`
	Key   string `json:"key,omitempty"`
}

// Correction reports one enforcement change.
type Correction struct {
	Reason   string `json:"reason"`
	Original string `json:"original"`
	Result   string `json:"result"`
	Detail   string `json:"detail,omitempty"`
}

// Response is sent back for every message.
type Response struct {
	Type        string             `json:"type"`
	Session     string             `json:"session"`
	HTML        string             `json:"html,omitempty"`
	Corrections int                `json:"corrections"`
	Report      []Correction       `json:"report,omitempty"`
	Overlays    int                `json:"overlays"`
	Overlay     string             `json:"overlay,omitempty"`
	Items       []builtin.MenuItem `json:"items,omitempty"`
	Message     string             `json:"message,omitempty"`
}

// Session is one websocket connection and the editor it drives.
type Session struct {
	id     string
	conn   *websocket.Conn
	editor *editor.Editor
	logger logging.Logger

	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, ed *editor.Editor, logger logging.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		editor: ed,
		logger: logger.WithComponent("session").With("session", id),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Editor returns the session's editor.
func (s *Session) Editor() *editor.Editor { return s.editor }

// Run reads messages until the connection closes or ctx is done. Every
// message is answered with a state or an error response.
func (s *Session) Run(ctx context.Context) {
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, s.conn, &raw); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Warn(ctx, err, "WebSocket read failed")
			}
			return
		}

		resp := s.handle(ctx, raw)
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err := wsjson.Write(writeCtx, s.conn, resp)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, err, "WebSocket write failed")
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, raw json.RawMessage) Response {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return s.fail(fmt.Errorf("malformed message: %w", err))
	}

	op := logging.StartOperation(s.logger, "message "+msg.Type)
	ed := s.editor
	var items []builtin.MenuItem
	switch msg.Type {
	case MessageLoad:
		if err := ed.Load(msg.HTML); err != nil {
			return s.fail(err)
		}
	case MessageInsert:
		if _, err := ed.Insert(msg.HTML, msg.Index); err != nil {
			return s.fail(err)
		}
	case MessageSlash:
		comp, err := ed.OpenSlashMenu(ctx, msg.Index)
		if err != nil {
			return s.fail(err)
		}
		if comp != nil {
			items = ed.SlashMenu().ItemsFor(ctx, ed.Block(msg.Index))
		}
	case MessageApply:
		if _, err := ed.ApplySlashItem(ctx, msg.Index, msg.Item); err != nil {
			return s.fail(err)
		}
	case MessageKey:
		if msg.Key == overlay.KeyEscape {
			ed.Stack().HandleKey(msg.Key)
		}
	default:
		return s.fail(fmt.Errorf("unknown message type %q", msg.Type))
	}

	op.End(ctx)
	return s.state(items)
}

func (s *Session) state(items []builtin.MenuItem) Response {
	ed := s.editor
	corrections := ed.TakeCorrections()
	return Response{
		Type:        ResponseState,
		Session:     s.id,
		HTML:        ed.HTML(),
		Corrections: len(corrections),
		Report:      report(corrections),
		Overlays:    ed.Stack().Len(),
		Overlay:     ed.OverlayHTML(),
		Items:       items,
	}
}

func (s *Session) fail(err error) Response {
	return Response{
		Type:     ResponseError,
		Session:  s.id,
		Overlays: s.editor.Stack().Len(),
		Message:  err.Error(),
	}
}

// Close closes the connection and the editor.
func (s *Session) Close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.conn.Close(code, reason)
		if err := s.editor.Close(context.Background()); err != nil {
			s.logger.Warn(context.Background(), err, "Editor shutdown reported errors")
		}
	})
}

func report(ns []enforcer.Normalization) []Correction {
	if len(ns) == 0 {
		return nil
	}
	out := make([]Correction, 0, len(ns))
	for _, n := range ns {
		out = append(out, Correction{
			Reason:   string(n.Reason),
			Original: describe(n.Original),
			Result:   describe(n.Replacement),
			Detail:   n.Detail,
		})
	}
	return out
}

// describe renders the opening tag of n, e.g. <h2 class="block">.
func describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	outer := dom.OuterHTML(n)
	if i := strings.Index(outer, ">"); i >= 0 {
		return outer[:i+1]
	}
	return outer
}
