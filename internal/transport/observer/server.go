package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"factorysim.ai/internal/observerproto"
	"factorysim.ai/internal/sim/encoding"
	"factorysim.ai/internal/sim/world"
)

// Server exposes read-only views of a running world to local renderers.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Bootstrap describes the static grid so a renderer can place machines before the first TICK.
func Bootstrap(w *world.World) observerproto.BootstrapResponse {
	cfg := w.Config()
	l := w.Layout()
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         cfg.ID,
		LevelID:         w.LevelID(),
		Tick:            w.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickRateHz:      cfg.TickRateHz,
			Width:           l.Width,
			Height:          l.Height,
			Seed:            cfg.Seed,
			ItemMoveSeconds: cfg.ItemMoveSeconds,
		},
		MachinePalette: l.Palette,
		Layout: observerproto.GridLayout{
			Encoding:   observerproto.LayoutEncoding,
			Machines:   encoding.EncodeRuns(l.Machines),
			Directions: encoding.EncodeRuns(l.Directions),
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(Bootstrap(s.world))
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		tickOut := make(chan []byte, 4)
		join := func(sub observerproto.SubscribeMsg) bool {
			select {
			case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, TickOut: tickOut, IncludeEvents: sub.IncludeEvents}:
				return true
			default:
				return false
			}
		}
		if !join(sub) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined from %s", sid, r.RemoteAddr)
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-tickOut:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: a repeated SUBSCRIBE updates the session settings.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				// Dropped under load; the client may resend.
				_ = join(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
