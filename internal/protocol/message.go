// Package protocol implements the binary message framing used between
// the game server and its clients. Every frame is
// [type: 1 byte][payload length: 4 bytes big-endian][payload: UTF-8].
package protocol

import "fmt"

// MsgType identifies the kind of a framed message. The byte values are
// part of the wire contract and must not be renumbered.
type MsgType byte

const (
	// Basic I/O messages.
	MsgDisplayText  MsgType = 1 // server -> client: text to display
	MsgRequestInput MsgType = 2 // server -> client: prompt for one line
	MsgUserInput    MsgType = 3 // client -> server: one line of input

	// Authentication messages.
	MsgLoginRequest      MsgType = 10
	MsgLoginResponse     MsgType = 11
	MsgRegisterRequest   MsgType = 12
	MsgRegisterResponse  MsgType = 13
	MsgReconnectRequest  MsgType = 14
	MsgReconnectResponse MsgType = 15

	// Game state messages.
	MsgCharacterList   MsgType = 20
	MsgSelectCharacter MsgType = 21
	MsgCreateCharacter MsgType = 22

	// Timeout and connection messages.
	MsgTimeoutWarning  MsgType = 30
	MsgTimeoutExceeded MsgType = 31
	MsgHeartbeat       MsgType = 32
	MsgDisconnect      MsgType = 33

	// Error messages.
	MsgError MsgType = 40
)

// Valid reports whether t is a known message type.
func (t MsgType) Valid() bool {
	switch t {
	case MsgDisplayText, MsgRequestInput, MsgUserInput,
		MsgLoginRequest, MsgLoginResponse,
		MsgRegisterRequest, MsgRegisterResponse,
		MsgReconnectRequest, MsgReconnectResponse,
		MsgCharacterList, MsgSelectCharacter, MsgCreateCharacter,
		MsgTimeoutWarning, MsgTimeoutExceeded,
		MsgHeartbeat, MsgDisconnect,
		MsgError:
		return true
	}
	return false
}

// String returns a human-readable name for logging.
func (t MsgType) String() string {
	switch t {
	case MsgDisplayText:
		return "display_text"
	case MsgRequestInput:
		return "request_input"
	case MsgUserInput:
		return "user_input"
	case MsgLoginRequest:
		return "login_request"
	case MsgLoginResponse:
		return "login_response"
	case MsgRegisterRequest:
		return "register_request"
	case MsgRegisterResponse:
		return "register_response"
	case MsgReconnectRequest:
		return "reconnect_request"
	case MsgReconnectResponse:
		return "reconnect_response"
	case MsgCharacterList:
		return "character_list"
	case MsgSelectCharacter:
		return "select_character"
	case MsgCreateCharacter:
		return "create_character"
	case MsgTimeoutWarning:
		return "timeout_warning"
	case MsgTimeoutExceeded:
		return "timeout_exceeded"
	case MsgHeartbeat:
		return "heartbeat"
	case MsgDisconnect:
		return "disconnect"
	case MsgError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Message is one framed protocol message. Data is always valid UTF-8
// text; binary payloads are not part of this protocol.
type Message struct {
	Type MsgType
	Data string
}

// Text builds a MsgDisplayText message.
func Text(data string) Message { return Message{Type: MsgDisplayText, Data: data} }

// Prompt builds a MsgRequestInput message.
func Prompt(data string) Message { return Message{Type: MsgRequestInput, Data: data} }
