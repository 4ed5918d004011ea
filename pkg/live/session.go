package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/protocol"
)

// Common session errors.
var (
	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionNotFound = errors.New("session not found")
)

// Persister saves component state after every handled message and restores
// it when a session is reopened.
type Persister interface {
	Persist(ctx context.Context, sessionID string, c core.Component) error
	Resume(ctx context.Context, sessionID string, c core.Component) (bool, error)
	Forget(ctx context.Context, sessionID string) error
	// Release is called when a session closes for any reason, after the
	// final Persist. Snapshots stay available to Resume.
	Release(sessionID string)
}

type inboxItem struct {
	msg  *protocol.Message
	info any
}

// Session owns one component instance. All component calls happen on the
// session goroutine; websocket frames and background results are queued to
// it through the inbox.
type Session struct {
	id        string
	component core.Component
	persister Persister
	logger    logging.Logger

	inbox      chan inboxItem
	out        chan *protocol.Message
	dispatcher *protocol.Dispatcher

	// html is the last render, read by the page handler.
	mu   sync.RWMutex
	html string

	connMu     sync.Mutex
	connCancel context.CancelFunc

	createdAt  time.Time
	lastActive atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, component core.Component, config *ManagerConfig, persister Persister, logger logging.Logger) *Session {
	now := time.Now()
	s := &Session{
		id:        id,
		component: component,
		persister: persister,
		logger:    logger.With(logging.String("session", id), logging.String("component", component.Name())),
		inbox:     make(chan inboxItem, config.InboxSize),
		out:       make(chan *protocol.Message, config.OutboxSize),
		createdAt: now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.lastActive.Store(now.UnixNano())

	s.dispatcher = protocol.NewDispatcher()
	s.dispatcher.Use(protocol.LoggingMiddleware(s.logger))
	s.dispatcher.Use(protocol.RecoveryMiddleware(func(r any) {
		s.logger.Error("component panicked", logging.Any("panic", r))
	}))
	s.dispatcher.RegisterFunc(protocol.MsgJoin, s.handleJoin)
	s.dispatcher.RegisterFunc(protocol.MsgEvent, s.handleEvent)
	s.dispatcher.RegisterFunc(protocol.MsgHeartbeat, s.handleHeartbeat)

	if ms, ok := component.(core.MailboxSetter); ok {
		ms.SetMailbox(core.MailboxFunc(s.Post))
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Component returns the hosted component.
func (s *Session) Component() core.Component {
	return s.component
}

// HTML returns the last rendered HTML.
func (s *Session) HTML() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.html
}

// LastActivity returns when the session last handled a message.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) context(ctx context.Context) context.Context {
	ctx = core.WithSessionID(ctx, s.id)
	return logging.ContextWithLogger(ctx, s.logger)
}

// start mounts the component, restores a saved snapshot and starts the
// session goroutine.
func (s *Session) start(ctx context.Context, params core.Params, session core.Session) error {
	ctx = core.WithParams(s.context(ctx), params)
	if err := s.component.Mount(ctx, params, session); err != nil {
		return fmt.Errorf("mount %s: %w", s.component.Name(), err)
	}
	if s.persister != nil {
		resumed, err := s.persister.Resume(ctx, s.id, s.component)
		if err != nil {
			s.logger.Warn("session snapshot unusable", logging.Err(err))
		} else if resumed {
			s.logger.Info("session resumed")
		}
	}
	if err := s.render(ctx, true); err != nil {
		return err
	}
	go s.loop()
	return nil
}

// Post queues msg for the component's HandleInfo. It reports false once the
// session is closed.
func (s *Session) Post(msg any) bool {
	return s.enqueue(inboxItem{info: msg})
}

// Deliver queues a client message.
func (s *Session) Deliver(msg *protocol.Message) bool {
	return s.enqueue(inboxItem{msg: msg})
}

func (s *Session) enqueue(item inboxItem) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.inbox <- item:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Session) loop() {
	defer close(s.done)
	ctx := s.context(context.Background())

	for {
		select {
		case item := <-s.inbox:
			s.touch()
			s.handle(ctx, item)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, item inboxItem) {
	if item.msg != nil {
		reply, err := s.dispatcher.Dispatch(ctx, item.msg)
		if err != nil {
			s.send(protocol.ErrorReply(item.msg.Ref, s.id, err.Error()))
		} else if reply != nil {
			s.send(reply)
		}
		if item.msg.Type == protocol.MsgHeartbeat {
			return
		}
	} else if err := s.callInfo(ctx, item.info); err != nil {
		s.logger.Warn("info handling failed", logging.Err(err))
	}

	if err := s.render(ctx, false); err != nil {
		s.logger.Error("render failed", logging.Err(err))
	}
	s.flushCommands()
	if s.persister != nil {
		if err := s.persister.Persist(ctx, s.id, s.component); err != nil {
			s.logger.Warn("snapshot save failed", logging.Err(err))
		}
	}
}

func (s *Session) callInfo(ctx context.Context, info any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", protocol.ErrHandlerPanic, r)
		}
	}()
	return s.component.HandleInfo(ctx, info)
}

func (s *Session) handleJoin(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	s.send(protocol.RenderMessage(s.id, s.HTML()))
	return protocol.OkReply(msg.Ref, s.id, nil), nil
}

func (s *Session) handleEvent(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	if err := s.component.HandleEvent(ctx, msg.Event, msg.Payload); err != nil {
		return nil, err
	}
	if msg.Ref == "" {
		return nil, nil
	}
	return protocol.OkReply(msg.Ref, s.id, nil), nil
}

func (s *Session) handleHeartbeat(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	return protocol.OkReply(msg.Ref, s.id, nil), nil
}

func (s *Session) flushCommands() {
	src, ok := s.component.(core.CommandSource)
	if !ok {
		return
	}
	for _, cmd := range src.DrainCommands() {
		s.send(protocol.CommandMessage(s.id, cmd.Name, cmd.Args))
	}
}

// render re-renders the component when its assigns changed (or always when
// force is set or it keeps no assigns) and pushes the HTML to the client.
func (s *Session) render(ctx context.Context, force bool) error {
	if ap, ok := s.component.(core.AssignsProvider); ok {
		tracker := ap.Assigns().Tracker()
		if !force && !tracker.HasChanges() {
			return nil
		}
		tracker.GetChanged()
	}

	var buf bytes.Buffer
	if err := s.component.Render(ctx).Render(ctx, &buf); err != nil {
		return err
	}
	s.mu.Lock()
	s.html = buf.String()
	s.mu.Unlock()

	if !force {
		s.send(protocol.RenderMessage(s.id, buf.String()))
	}
	return nil
}

// send queues msg for the attached connection. Without a reader the queue
// fills up and further messages are dropped; a reconnecting client joins
// and receives a fresh render.
func (s *Session) send(msg *protocol.Message) {
	select {
	case s.out <- msg:
	default:
		s.logger.Debug("outbound queue full, dropping message", logging.String("type", msg.Type.String()))
	}
}

// Close stops the session goroutine and terminates the component. It is
// safe to call more than once.
func (s *Session) Close(reason core.TerminateReason) {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		s.connMu.Lock()
		if s.connCancel != nil {
			s.connCancel()
		}
		s.connMu.Unlock()

		ctx := s.context(context.Background())
		if err := s.component.Terminate(ctx, reason); err != nil {
			s.logger.Warn("terminate failed", logging.Err(err))
		}
		if s.persister != nil {
			if reason == core.TerminateNormal {
				_ = s.persister.Forget(ctx, s.id)
			}
			s.persister.Release(s.id)
		}
		s.logger.Debug("session closed", logging.String("reason", reason.String()))
	})
}

// ConnConfig tunes a websocket connection.
type ConnConfig struct {
	ReadLimit    int64
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Serve pumps frames between conn and the session until either side goes
// away. A newer connection to the same session replaces the current one.
func (s *Session) Serve(ctx context.Context, conn *websocket.Conn, codec protocol.Codec, cfg ConnConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.connMu.Lock()
	if s.connCancel != nil {
		s.connCancel()
	}
	s.connCancel = cancel
	s.connMu.Unlock()

	select {
	case <-s.stop:
		return ErrSessionClosed
	default:
	}

	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}
	msgType := websocket.MessageText
	if codec.Binary() {
		msgType = websocket.MessageBinary
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return err
			}
			msg, err := codec.Decode(data)
			if err != nil {
				s.logger.Debug("dropping undecodable frame", logging.Err(err))
				continue
			}
			msg.Topic = s.id
			if !s.Deliver(msg) {
				return ErrSessionClosed
			}
		}
	})
	g.Go(func() error {
		ping := time.NewTicker(cfg.PingInterval)
		defer ping.Stop()
		for {
			select {
			case msg := <-s.out:
				data, err := codec.Encode(msg)
				if err != nil {
					s.logger.Warn("encode failed", logging.Err(err))
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, cfg.WriteTimeout)
				err = conn.Write(wctx, msgType, data)
				wcancel()
				if err != nil {
					return err
				}
			case <-ping.C:
				pctx, pcancel := context.WithTimeout(ctx, cfg.WriteTimeout)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	err := g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return nil
	}
	return err
}
