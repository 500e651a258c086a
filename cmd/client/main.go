// Package main provides the interactive terminal client. It speaks the
// binary frame protocol to the game server, relays prompts to stdin,
// and keeps the connection alive with heartbeats.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/jianghu-games/wuxia/internal/protocol"
)

const banner = `
╔══════════════════════════════╗
║        江 湖 风 云 录        ║
╚══════════════════════════════╝
`

type client struct {
	conn    net.Conn
	writeMu sync.Mutex

	frames chan protocol.Message
	lines  chan string

	infoColor   *color.Color
	promptColor *color.Color
	warnColor   *color.Color
	errColor    *color.Color
	okColor     *color.Color
}

func newClient(conn net.Conn) *client {
	c := &client{
		conn:        conn,
		frames:      make(chan protocol.Message, 16),
		lines:       make(chan string, 1),
		infoColor:   color.New(color.FgWhite),
		promptColor: color.New(color.FgCyan, color.Bold),
		warnColor:   color.New(color.FgYellow, color.Bold),
		errColor:    color.New(color.FgRed, color.Bold),
		okColor:     color.New(color.FgGreen, color.Bold),
	}
	go c.readFrames()
	go c.readStdin()
	return c
}

// readFrames decodes server frames into the frames channel. The channel
// closes when the stream dies, which the event loops treat as a dead
// connection.
func (c *client) readFrames() {
	defer close(c.frames)
	r := protocol.NewReader(c.conn)
	for {
		m, err := r.Decode()
		if err != nil {
			return
		}
		c.frames <- m
	}
}

func (c *client) readStdin() {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

func (c *client) send(m protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.Encode(c.conn, m)
}

// heartbeat pings the server so the liveness monitor sees traffic while
// the player sits at a prompt or waits for other players.
func (c *client) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := c.send(protocol.Message{Type: protocol.MsgHeartbeat}); err != nil {
			return
		}
	}
}

// readLine blocks for one stdin line, still draining display frames so
// server text is never held back behind a local prompt.
//
// Postcondition: Returns false only when the connection died.
func (c *client) readLine() (string, bool) {
	for {
		select {
		case line := <-c.lines:
			return strings.TrimSpace(line), true
		case m, ok := <-c.frames:
			if !ok {
				return "", false
			}
			c.handlePassive(m)
		}
	}
}

func (c *client) ask(prompt string) (string, bool) {
	c.promptColor.Print(prompt)
	return c.readLine()
}

// handlePassive deals with frames that can arrive at any time,
// independent of what the client is currently doing.
func (c *client) handlePassive(m protocol.Message) {
	switch m.Type {
	case protocol.MsgDisplayText:
		c.infoColor.Print(m.Data)
		if !strings.HasSuffix(m.Data, "\n") {
			fmt.Println()
		}
	case protocol.MsgTimeoutWarning:
		c.warnColor.Println("⚠ " + m.Data)
	case protocol.MsgTimeoutExceeded:
		c.errColor.Println("✖ " + m.Data)
	case protocol.MsgError:
		c.errColor.Println("✖ " + m.Data)
	case protocol.MsgHeartbeat:
		// Server ping, or the echo of ours. Never answered: the server
		// already echoes client pings, so replying would ping-pong.
	case protocol.MsgDisconnect:
		c.infoColor.Println("服务器已断开连接。")
		os.Exit(0)
	}
}

// authenticate walks the login menu until the server accepts a
// credential request. Reconnecting binds the character immediately, so
// the caller skips character selection in that case.
func (c *client) authenticate() (reconnected, alive bool) {
	for {
		c.promptColor.Println("1. 登录  2. 注册  3. 断线重连")
		choice, ok := c.readLine()
		if !ok {
			return false, false
		}

		var reqType, respType protocol.MsgType
		switch choice {
		case "1":
			reqType, respType = protocol.MsgLoginRequest, protocol.MsgLoginResponse
		case "2":
			reqType, respType = protocol.MsgRegisterRequest, protocol.MsgRegisterResponse
		case "3":
			reqType, respType = protocol.MsgReconnectRequest, protocol.MsgReconnectResponse
		default:
			c.errColor.Println("请输入 1、2 或 3")
			continue
		}

		username, ok := c.ask("用户名: ")
		if !ok {
			return false, false
		}
		password, ok := c.ask("密码: ")
		if !ok {
			return false, false
		}
		payload := username + "\n" + password
		if reqType == protocol.MsgReconnectRequest {
			charName, ok := c.ask("角色名: ")
			if !ok {
				return false, false
			}
			payload += "\n" + charName
		}

		if err := c.send(protocol.Message{Type: reqType, Data: payload}); err != nil {
			return false, false
		}

		if c.awaitOK(respType) {
			c.okColor.Println("✔ 成功")
			return reqType == protocol.MsgReconnectRequest, true
		}
	}
}

// awaitOK waits for the expected response frame. A MsgError means the
// request was rejected and the caller should retry.
func (c *client) awaitOK(want protocol.MsgType) bool {
	for {
		m, ok := <-c.frames
		if !ok {
			c.errColor.Println("连接已断开")
			os.Exit(1)
		}
		switch m.Type {
		case want:
			return true
		case protocol.MsgError:
			c.errColor.Println("✖ " + m.Data)
			return false
		default:
			c.handlePassive(m)
		}
	}
}

// chooseCharacter shows the account's characters and either selects one
// or creates a new one. On success the server's next frame is already
// in-game traffic, which is returned to seed the play loop.
func (c *client) chooseCharacter() (protocol.Message, bool) {
	var names []string
	for {
		m, ok := <-c.frames
		if !ok {
			return protocol.Message{}, false
		}
		if m.Type == protocol.MsgCharacterList {
			if m.Data != "" {
				names = strings.Split(m.Data, "\n")
			}
			break
		}
		c.handlePassive(m)
	}

	for {
		if len(names) == 0 {
			c.infoColor.Println("该账号暂无角色。")
		} else {
			c.infoColor.Println("已有角色：")
			for i, n := range names {
				c.infoColor.Printf("  %d. %s\n", i+1, n)
			}
		}

		name, ok := c.ask("输入角色名进入，或输入 new 创建新角色: ")
		if !ok {
			return protocol.Message{}, false
		}

		var req protocol.Message
		if name == "new" {
			newName, ok := c.ask("新角色名: ")
			if !ok {
				return protocol.Message{}, false
			}
			style, ok := c.ask("主修武学 (saber/sword/fist): ")
			if !ok {
				return protocol.Message{}, false
			}
			req = protocol.Message{Type: protocol.MsgCreateCharacter, Data: newName + "\n" + style}
		} else {
			req = protocol.Message{Type: protocol.MsgSelectCharacter, Data: name}
		}

		if err := c.send(req); err != nil {
			return protocol.Message{}, false
		}

		// The server acknowledges a successful bind with display text;
		// a rejection comes back as MsgError.
		m, ok := <-c.frames
		if !ok {
			return protocol.Message{}, false
		}
		if m.Type == protocol.MsgError {
			c.errColor.Println("✖ " + m.Data)
			continue
		}
		return m, true
	}
}

// play relays prompts and display text until the connection ends.
func (c *client) play(first protocol.Message, haveFirst bool) {
	if haveFirst {
		c.dispatch(first)
	}
	for m := range c.frames {
		c.dispatch(m)
	}
	c.errColor.Println("连接已断开")
	os.Exit(1)
}

func (c *client) dispatch(m protocol.Message) {
	if m.Type != protocol.MsgRequestInput {
		c.handlePassive(m)
		return
	}
	line, ok := c.ask(m.Data)
	if !ok {
		c.errColor.Println("连接已断开")
		os.Exit(1)
	}
	_ = c.send(protocol.Message{Type: protocol.MsgUserInput, Data: line})
}

func main() {
	addr := flag.String("addr", "localhost:8888", "game server address")
	heartbeat := flag.Duration("heartbeat", 20*time.Second, "heartbeat interval")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	c := newClient(conn)
	go c.heartbeat(*heartbeat)

	// A clean goodbye lets the server tear the session down instead of
	// waiting out the liveness window.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		_ = c.send(protocol.Message{Type: protocol.MsgDisconnect})
		conn.Close()
		os.Exit(0)
	}()

	color.New(color.FgYellow, color.Bold).Print(banner + "\n")

	reconnected, alive := c.authenticate()
	if !alive {
		c.errColor.Println("连接已断开")
		os.Exit(1)
	}

	if reconnected {
		c.play(protocol.Message{}, false)
		return
	}

	first, ok := c.chooseCharacter()
	if !ok {
		c.errColor.Println("连接已断开")
		os.Exit(1)
	}
	c.play(first, true)
}
