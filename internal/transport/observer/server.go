// Package observer streams negotiation events to loopback websocket clients.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/observerproto"
	"negotiator.ai/internal/protocol"
)

const subscriberBuffer = 256

// BootstrapFunc supplies the agent part of the bootstrap response.
type BootstrapFunc func() observerproto.BootstrapResponse

// Server is an event sink that fans events out to websocket subscribers.
// Slow subscribers lose events rather than stall the agent.
type Server struct {
	log       *log.Logger
	bootstrap BootstrapFunc

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	seq      atomic.Uint64
	dropped  atomic.Uint64

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	out    chan []byte
	filter atomic.Pointer[observerproto.SubscribeMsg]
}

func NewServer(bootstrap BootstrapFunc, logger *log.Logger) *Server {
	return &Server{
		log:       logger,
		bootstrap: bootstrap,
		subs:      map[string]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
	}
}

// WriteEvent implements negotiation.EventSink.
func (s *Server) WriteEvent(ev negotiation.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.subs) == 0 {
		return nil
	}
	b, err := json.Marshal(observerproto.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: observerproto.Version,
		Seq:             s.seq.Add(1),
		Event:           ev,
	})
	if err != nil {
		return err
	}
	for _, sub := range s.subs {
		if f := sub.filter.Load(); f != nil && !f.Matches(ev) {
			continue
		}
		select {
		case sub.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped counts events not delivered to a subscriber whose buffer was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

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
		var resp observerproto.BootstrapResponse
		if s.bootstrap != nil {
			resp = s.bootstrap()
		}
		resp.ProtocolVersion = observerproto.Version
		resp.Subscribers = s.Subscribers()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
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
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		entry := &subscriber{out: make(chan []byte, subscriberBuffer)}
		entry.filter.Store(&sub)
		s.mu.Lock()
		s.subs[sid] = entry
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()
		s.logf("observer %s subscribed from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-entry.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				entry.filter.Store(&sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.logf("observer %s left", sid)
	}
}

func decodeSubscribe(b []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	sub.Counterparty = strings.TrimSpace(sub.Counterparty)
	return sub, true
}

// IsLoopbackRemote reports whether an http.Request RemoteAddr is a loopback
// address.
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

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
