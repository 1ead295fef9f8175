package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"negotiator.ai/internal/observerproto"
	"negotiator.ai/internal/protocol"
)

func main() {
	var (
		url          = flag.String("url", "ws://127.0.0.1:14007/admin/v1/observer/ws", "observer ws url")
		counterparty = flag.String("counterparty", "", "only show events for this counterparty")
		kinds        = flag.String("kinds", "", "comma-separated event kinds (e.g. INBOUND,DEAL)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.NewSubscribe()
	sub.Counterparty = strings.TrimSpace(*counterparty)
	for _, k := range strings.Split(*kinds, ",") {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			sub.Kinds = append(sub.Kinds, k)
		}
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeEvent {
				continue
			}
			var ev observerproto.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			printEvent(logger, ev)
		}
	}()

	// The server drops readers that stay silent; re-subscribing keeps the
	// connection alive.
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-stop:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return
		case <-done:
			return
		case <-keepalive.C:
			if err := conn.WriteJSON(sub); err != nil {
				logger.Printf("resend SUBSCRIBE: %v", err)
				return
			}
		}
	}
}

func printEvent(logger *log.Logger, m observerproto.EventMsg) {
	ev := m.Event
	line := []string{string(ev.Kind)}
	if ev.Round > 0 {
		line = append(line, "round="+strconv.Itoa(ev.Round))
	}
	if ev.Counterparty != "" {
		line = append(line, "with="+ev.Counterparty)
	}
	if ev.Act != nil {
		b, _ := json.Marshal(ev.Act.Bundle)
		line = append(line, "act="+string(ev.Act.Kind), string(b))
	}
	if ev.Rule != "" {
		line = append(line, "rule="+string(ev.Rule))
	}
	if ev.Text != "" {
		line = append(line, "text="+strconv.Quote(ev.Text))
	}
	logger.Printf("#%d %s", m.Seq, strings.Join(line, " "))
}
