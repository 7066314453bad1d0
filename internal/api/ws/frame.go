package ws

// Client frame types.
const (
	FrameSubscribe = "subscribe"
	FramePong      = "pong"
	FramePing      = "ping"
	FrameIdentify  = "identify"
)

// ClientFrame is a message sent by a client over the socket.
type ClientFrame struct {
	Type     string `json:"type"`
	BoardID  string `json:"board_id,omitempty"`
	Username string `json:"username,omitempty"`
}
