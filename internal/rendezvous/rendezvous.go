// Package rendezvous exchanges ICE credentials and candidates between
// two cmd/ice-probe instances over a websocket, standing in for the SDP
// offer/answer signaling channel a full WebRTC stack would use.
//
// One side listens (Host), the other connects (Join); both speak the
// same newline-delimited JSON Message protocol, modeled on the teacher's
// internal/signaling/local.go websocket-per-session pattern but reduced
// to exactly the fields an ice-probe session needs.
package rendezvous

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one unit of the exchange: a peer's credentials plus
// whatever candidates it has gathered so far.
type Message struct {
	Ufrag      string   `json:"ufrag"`
	Pwd        string   `json:"pwd"`
	RTCPMux    bool     `json:"rtcp_mux"`
	Candidates []string `json:"candidates"` // SDP a=candidate lines, without the "a=" prefix
}

// Conn wraps a single websocket connection with the Message framing
// both Host and Join use.
type Conn struct {
	ws *websocket.Conn
}

func (c *Conn) Send(msg Message) error {
	return c.ws.WriteJSON(msg)
}

func (c *Conn) Receive() (Message, error) {
	var msg Message
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Host starts an HTTP server on addr and returns the first peer
// connection made to it, or an error if ctx is canceled first.
func Host(ctx context.Context, addr string) (*Conn, error) {
	connCh := make(chan *Conn, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case connCh <- &Conn{ws: ws}:
		default:
			ws.Close()
		}
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go server.ListenAndServe()

	select {
	case c := <-connCh:
		go server.Shutdown(context.Background())
		return c, nil
	case err := <-errCh:
		server.Shutdown(context.Background())
		return nil, err
	case <-ctx.Done():
		server.Shutdown(context.Background())
		return nil, ctx.Err()
	}
}

// Join dials the peer started with Host.
func Join(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// MarshalIndent pretty-prints msg as indented JSON, or returns a
// placeholder string if it cannot be marshaled.
func MarshalIndent(msg Message) string {
	b, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Sprintf("<unmarshalable message: %v>", err)
	}
	return string(b)
}
