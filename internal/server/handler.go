package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/config"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/game/session"
	"github.com/jianghu-games/wuxia/internal/netio"
	"github.com/jianghu-games/wuxia/internal/protocol"
)

// maxHandshakeAttempts bounds retries during authentication and
// character selection before the connection is dropped.
const maxHandshakeAttempts = 5

// State is the handshake phase of a connection.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateBound:
		return "bound"
	default:
		return "closed"
	}
}

// AccountStore is the credential surface the handshake needs.
type AccountStore interface {
	Authenticate(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

// CharacterStore lists, creates, and loads the characters bound to an
// account.
type CharacterStore interface {
	List(ctx context.Context, username string) ([]string, error)
	Create(ctx context.Context, username string, snap entity.Snapshot) error
	Load(ctx context.Context, name string) (entity.Snapshot, error)
}

// Handler walks one connection through the handshake state machine
// (authenticate, pick a character, bind) and then hands the connection
// to the round loop via the registry. It also enforces per-state
// liveness windows.
type Handler struct {
	conn       *Conn
	registry   *session.Registry
	accounts   AccountStore
	characters CharacterStore
	game       config.GameConfig
	logger     *zap.Logger

	// onBound fires once when the connection is bound to an entity.
	onBound func()

	mu       sync.Mutex
	state    State
	username string
	charName string
}

// NewHandler creates a handler for one accepted connection.
//
// Precondition: all arguments except onBound must be non-nil.
func NewHandler(conn *Conn, registry *session.Registry, accounts AccountStore, characters CharacterStore, game config.GameConfig, onBound func(), logger *zap.Logger) *Handler {
	return &Handler{
		conn:       conn,
		registry:   registry,
		accounts:   accounts,
		characters: characters,
		game:       game,
		onBound:    onBound,
		logger:     logger.With(zap.String("conn_id", conn.ID())),
	}
}

// State returns the current handshake phase.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// EntityName returns the bound character name, empty before binding.
func (h *Handler) EntityName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.charName
}

// Run owns the connection until it dies: read loop, liveness monitor,
// handshake, then disconnect cleanup. Errors never escape; they
// translate into teardown plus AI takeover of any bound entity.
func (h *Handler) Run(ctx context.Context) {
	h.logger.Info("connection accepted", zap.String("remote", h.conn.RemoteAddr()))
	go h.conn.ReadLoop()
	go h.monitorLiveness()

	if err := h.handshake(ctx); err != nil {
		h.logger.Info("handshake failed", zap.Error(err))
		h.conn.Close()
		h.setState(StateClosed)
		return
	}

	go h.heartbeatLoop()

	<-h.conn.Done()
	h.handleDisconnect()
}

// heartbeatLoop pings the bound client at the configured interval so a
// silently dead socket surfaces as a write failure instead of idling
// out a liveness window. Clients do not echo these pings back.
func (h *Handler) heartbeatLoop() {
	if h.game.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.game.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.conn.Done():
			return
		case <-ticker.C:
			_ = h.conn.Send(protocol.Message{Type: protocol.MsgHeartbeat})
		}
	}
}

func (h *Handler) handshake(ctx context.Context) error {
	h.send(protocol.Text("欢迎来到江湖！\n"))

	if err := h.authenticate(ctx); err != nil {
		return err
	}
	if h.State() == StateBound {
		// Reconnection binds during authentication.
		return nil
	}
	return h.chooseCharacter(ctx)
}

// authenticate loops on login/register/reconnect requests until one
// succeeds or the attempt budget is spent.
func (h *Handler) authenticate(ctx context.Context) error {
	for i := 0; i < maxHandshakeAttempts; i++ {
		m, err := h.conn.AwaitMessage(0)
		if err != nil {
			return err
		}

		switch m.Type {
		case protocol.MsgLoginRequest:
			username, password, ok := splitCredentials(m.Data)
			if !ok {
				h.reject("登录请求格式错误")
				continue
			}
			if err := h.accounts.Authenticate(ctx, username, password); err != nil {
				h.logger.Info("login rejected", zap.String("username", username))
				h.reject("用户名或密码错误")
				continue
			}
			h.authenticated(username)
			h.send(protocol.Message{Type: protocol.MsgLoginResponse, Data: "ok"})
			return nil

		case protocol.MsgRegisterRequest:
			username, password, ok := splitCredentials(m.Data)
			if !ok {
				h.reject("注册请求格式错误")
				continue
			}
			if err := h.accounts.Register(ctx, username, password); err != nil {
				h.logger.Info("registration rejected",
					zap.String("username", username), zap.Error(err))
				h.reject("注册失败：" + err.Error())
				continue
			}
			h.authenticated(username)
			h.send(protocol.Message{Type: protocol.MsgRegisterResponse, Data: "ok"})
			return nil

		case protocol.MsgReconnectRequest:
			if err := h.reconnect(ctx, m.Data); err != nil {
				h.reject("重连失败：" + err.Error())
				continue
			}
			return nil

		default:
			h.reject("请先登录")
		}
	}
	return errAttemptsExhausted("authentication")
}

func (h *Handler) authenticated(username string) {
	h.mu.Lock()
	h.username = username
	h.state = StateAuthenticated
	h.mu.Unlock()
	h.logger.Info("authenticated", zap.String("username", username))
}

// chooseCharacter sends the account's character list and waits for a
// selection or a creation request.
func (h *Handler) chooseCharacter(ctx context.Context) error {
	names, err := h.characters.List(ctx, h.username)
	if err != nil {
		return err
	}
	h.send(protocol.Message{Type: protocol.MsgCharacterList, Data: strings.Join(names, "\n")})

	for i := 0; i < maxHandshakeAttempts; i++ {
		m, err := h.conn.AwaitMessage(0)
		if err != nil {
			return err
		}

		switch m.Type {
		case protocol.MsgSelectCharacter:
			name := strings.TrimSpace(m.Data)
			if !contains(names, name) {
				h.reject("角色不存在：" + name)
				continue
			}
			snap, err := h.characters.Load(ctx, name)
			if err != nil {
				h.reject("读取角色失败")
				continue
			}
			p, err := entity.FromSnapshot(snap)
			if err != nil {
				h.logger.Error("corrupt snapshot", zap.String("character", name), zap.Error(err))
				h.reject("角色数据损坏")
				continue
			}
			return h.bind(p)

		case protocol.MsgCreateCharacter:
			p, err := h.createCharacter(ctx, m.Data)
			if err != nil {
				h.reject(err.Error())
				continue
			}
			return h.bind(p)

		default:
			h.reject("请选择或创建角色")
		}
	}
	return errAttemptsExhausted("character selection")
}

func (h *Handler) createCharacter(ctx context.Context, payload string) (*entity.Player, error) {
	parts := strings.SplitN(payload, "\n", 2)
	if len(parts) != 2 {
		return nil, errBadPayload("创建角色请求格式错误")
	}
	name := strings.TrimSpace(parts[0])
	style := entity.SkillType(strings.TrimSpace(parts[1]))
	if name == "" || !style.Valid() {
		return nil, errBadPayload("角色名或主修武学无效")
	}

	p := entity.NewPlayer(name, name, entity.NewBaseStats(), style)
	if err := h.characters.Create(ctx, h.username, p.ToSnapshot()); err != nil {
		return nil, errBadPayload("创建角色失败：" + err.Error())
	}
	h.logger.Info("character created",
		zap.String("username", h.username), zap.String("character", name))
	return p, nil
}

// bind attaches the entity to this connection. An entity already in
// the registry means the player is resuming a running game: the old
// port is replaced atomically and its connection torn down.
func (h *Handler) bind(p *entity.Player) error {
	resuming := false
	if err := h.registry.AddEntity(p); err != nil {
		resuming = true
	}

	port := netio.NewNetPort(h.conn, h.timeoutPolicy(), h.logger)
	old, err := h.registry.BindPort(p.Name, port)
	if err != nil {
		return err
	}
	closePort(old)

	h.mu.Lock()
	h.charName = p.Name
	h.state = StateBound
	h.mu.Unlock()

	h.logger.Info("entity bound",
		zap.String("character", p.Name), zap.Bool("resuming", resuming))
	h.send(protocol.Text("已进入江湖，等待其他侠客……\n"))

	// The player now sits idle until the table fills; the round loop
	// clears the flag when their first turn starts.
	port.SetWaiting(true)

	if resuming && h.registry.IsAIControlled(p.Name) {
		h.offerTakeback(port, p.Name)
	}
	if h.onBound != nil {
		h.onBound()
	}
	return nil
}

// reconnect rebinds a live entity mid-game. Payload is
// "username\npassword\ncharacter".
func (h *Handler) reconnect(ctx context.Context, payload string) error {
	parts := strings.SplitN(payload, "\n", 3)
	if len(parts) != 3 {
		return errBadPayload("重连请求格式错误")
	}
	username, password, charName := parts[0], parts[1], strings.TrimSpace(parts[2])

	if err := h.accounts.Authenticate(ctx, username, password); err != nil {
		return errBadPayload("用户名或密码错误")
	}
	names, err := h.characters.List(ctx, username)
	if err != nil {
		return err
	}
	if !contains(names, charName) {
		return errBadPayload("角色不属于该账号")
	}
	if _, exists := h.registry.Entity(charName); !exists {
		return errBadPayload("角色不在对局中")
	}

	h.authenticated(username)

	port := netio.NewNetPort(h.conn, h.timeoutPolicy(), h.logger)
	old, err := h.registry.BindPort(charName, port)
	if err != nil {
		return err
	}
	closePort(old)

	h.mu.Lock()
	h.charName = charName
	h.state = StateBound
	h.mu.Unlock()

	h.send(protocol.Message{Type: protocol.MsgReconnectResponse, Data: "ok"})
	h.logger.Info("reconnected", zap.String("character", charName))

	h.offerTakeback(port, charName)
	if h.onBound != nil {
		h.onBound()
	}
	return nil
}

// offerTakeback asks before handing the entity back to human control;
// AI keeps playing until the player confirms.
func (h *Handler) offerTakeback(port netio.Port, name string) {
	yes, err := port.Confirm("你的角色正由AI代管，是否立即接管？")
	if err != nil || !yes {
		return
	}
	h.registry.SetAIControlled(name, false)
	port.Println("已恢复人工操作，下一回合开始生效。")
	h.logger.Info("human control restored", zap.String("character", name))
}

// handleDisconnect runs after the connection dies: a bound entity goes
// to AI control until an explicit reconnect.
func (h *Handler) handleDisconnect() {
	h.mu.Lock()
	name := h.charName
	wasBound := h.state == StateBound
	h.state = StateClosed
	h.mu.Unlock()

	if wasBound && name != "" {
		// Only flag if this connection still owns the binding; a
		// reconnect may have superseded it already.
		if port, ok := h.registry.Port(name); ok && !port.Alive() {
			h.registry.SetAIControlled(name, true)
			h.logger.Info("disconnect, ai takeover", zap.String("character", name))
			return
		}
	}
	h.logger.Info("connection closed", zap.Stringer("state", StateClosed))
}

// monitorLiveness closes the connection when it stays silent past the
// window for its current state. Connections flagged as waiting for
// other players are exempt.
func (h *Handler) monitorLiveness() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if !h.conn.Alive() {
			return
		}
		if h.conn.Waiting() {
			continue
		}
		window := h.livenessWindow()
		if idle := time.Since(h.conn.LastSeen()); idle > window {
			h.logger.Warn("liveness window exceeded",
				zap.Stringer("state", h.State()),
				zap.Duration("idle", idle),
				zap.Duration("window", window))
			h.conn.Close()
			return
		}
	}
}

func (h *Handler) livenessWindow() time.Duration {
	switch h.State() {
	case StateUnauthenticated:
		return h.game.LivenessUnauthenticated
	case StateAuthenticated:
		return h.game.LivenessAuthenticated
	default:
		return h.game.LivenessBound
	}
}

func (h *Handler) timeoutPolicy() netio.TimeoutPolicy {
	return netio.TimeoutPolicy{
		InputTimeout: h.game.InputTimeout,
		GraceTimeout: h.game.GraceTimeout,
		HardEnabled:  h.game.HardTimeoutEnabled,
	}
}

func (h *Handler) send(m protocol.Message) {
	_ = h.conn.Send(m)
}

func (h *Handler) reject(msg string) {
	h.send(protocol.Message{Type: protocol.MsgError, Data: msg})
}

func errAttemptsExhausted(phase string) error {
	return fmt.Errorf("%s: attempts exhausted", phase)
}

// errBadPayload builds the user-visible rejection for a malformed or
// unacceptable request.
func errBadPayload(msg string) error {
	return errors.New(msg)
}

func closePort(p netio.Port) {
	if c, ok := p.(interface{ Close() }); ok {
		c.Close()
	}
}

func splitCredentials(payload string) (username, password string, ok bool) {
	parts := strings.SplitN(payload, "\n", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), parts[1], true
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
