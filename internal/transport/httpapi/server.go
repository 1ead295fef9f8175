// Package httpapi serves the orchestrator-facing control surface: utility
// and round control, inbound messages and rejections, plus the diagnostic
// classify and extract routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"negotiator.ai/internal/agent"
	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/protocol"
	"negotiator.ai/internal/transport/observer"
)

const DefaultMaxBodyBytes = 1 << 20

// Agent is the part of agent.Agent the routes drive.
type Agent interface {
	SetUtility(protocol.UtilityInfo) protocol.UtilityInfo
	ReportUtility() (protocol.UtilityInfo, error)
	StartRound(protocol.StartRoundRequest) negotiation.RoundState
	EndRound() negotiation.RoundState
	ReceiveMessage(ctx context.Context, msg protocol.InboundMessage) (protocol.InboundMessage, error)
	ReceiveRejection(ctx context.Context, n protocol.RejectionNotice) (protocol.RejectionNotice, error)
	Classify(ctx context.Context, msg protocol.InboundMessage) (classifier.Classification, error)
	ExtractBid(ctx context.Context, msg protocol.InboundMessage) (protocol.ExtractedBid, error)
}

type Server struct {
	agent   Agent
	log     *log.Logger
	maxBody int64
}

func NewServer(a Agent, logger *log.Logger) *Server {
	return &Server{agent: a, log: logger, maxBody: DefaultMaxBodyBytes}
}

// Register mounts the control routes and /healthz on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/setUtility", s.post(s.handleSetUtility))
	mux.HandleFunc("/startRound", s.post(s.handleStartRound))
	mux.HandleFunc("/endRound", s.post(s.handleEndRound))
	mux.HandleFunc("/receiveMessage", s.post(s.handleReceiveMessage))
	mux.HandleFunc("/receiveRejection", s.post(s.handleReceiveRejection))
	mux.HandleFunc("/reportUtility", s.handleReportUtility)
	mux.HandleFunc("/classifyMessage", s.handleClassify)
	mux.HandleFunc("/extractBid", s.post(s.handleExtractBid))
}

// StateHandler serves a loopback-only JSON snapshot produced by state.
func StateHandler(state func() any) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(rw, http.StatusOK, state())
	}
}

func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.Header().Set("Allow", http.MethodPost)
			writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleSetUtility(rw http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(rw, r)
	if !ok {
		return
	}
	u, err := protocol.DecodeUtility(body)
	if err != nil {
		s.writeDecodeError(rw, err)
		return
	}
	u = s.agent.SetUtility(u)
	writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusAcknowledged, Utility: &u})
}

func (s *Server) handleStartRound(rw http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(rw, r)
	if !ok {
		return
	}
	req, err := protocol.DecodeStartRound(body)
	if err != nil {
		s.writeDecodeError(rw, err)
		return
	}
	s.agent.StartRound(req)
	writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusAcknowledged})
}

func (s *Server) handleEndRound(rw http.ResponseWriter, r *http.Request) {
	s.agent.EndRound()
	writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusAcknowledged})
}

func (s *Server) handleReceiveMessage(rw http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(rw, r)
	if !ok {
		return
	}
	msg, err := protocol.DecodeInbound(body)
	if err != nil {
		s.writeDecodeError(rw, err)
		return
	}
	interp, err := s.agent.ReceiveMessage(r.Context(), msg)
	if err != nil {
		s.writeAgentError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusAcknowledged, Interpretation: &interp})
}

func (s *Server) handleReceiveRejection(rw http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(rw, r)
	if !ok {
		return
	}
	n, err := protocol.DecodeRejection(body)
	if err != nil {
		s.writeDecodeError(rw, err)
		return
	}
	n, err = s.agent.ReceiveRejection(r.Context(), n)
	if err != nil {
		s.writeAgentError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusAcknowledged, Message: &n})
}

func (s *Server) handleReportUtility(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.Header().Set("Allow", http.MethodGet)
		writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
		return
	}
	u, err := s.agent.ReportUtility()
	if err != nil {
		// Orchestrators expect 200 with an error member here.
		writeError(rw, http.StatusOK, protocol.ErrNoUtility, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, u)
}

// handleClassify accepts GET with a body as well as POST.
func (s *Server) handleClassify(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		rw.Header().Set("Allow", "GET, POST")
		writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
		return
	}
	msg, ok := s.readMessage(rw, r)
	if !ok {
		return
	}
	c, err := s.agent.Classify(r.Context(), msg)
	if err != nil {
		s.logf("classifyMessage: %v", err)
		writeError(rw, http.StatusBadGateway, protocol.ErrClassifier, "error classifying message: "+err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, c)
}

func (s *Server) handleExtractBid(rw http.ResponseWriter, r *http.Request) {
	msg, ok := s.readMessage(rw, r)
	if !ok {
		return
	}
	b, err := s.agent.ExtractBid(r.Context(), msg)
	if err != nil {
		s.logf("extractBid: %v", err)
		writeError(rw, http.StatusBadGateway, protocol.ErrClassifier, "error extracting bid: "+err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, b)
}

func (s *Server) readMessage(rw http.ResponseWriter, r *http.Request) (protocol.InboundMessage, bool) {
	body, ok := s.readBody(rw, r)
	if !ok {
		return protocol.InboundMessage{}, false
	}
	msg, err := protocol.DecodeInbound(body)
	if err != nil {
		s.writeDecodeError(rw, err)
		return msg, false
	}
	return msg, true
}

func (s *Server) readBody(rw http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "read body: "+err.Error())
		return nil, false
	}
	if int64(len(body)) > s.maxBody {
		writeError(rw, http.StatusRequestEntityTooLarge, protocol.ErrBadRequest, "body too large")
		return nil, false
	}
	return body, true
}

func (s *Server) writeDecodeError(rw http.ResponseWriter, err error) {
	if errors.Is(err, protocol.ErrNoBody) {
		writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusNoBody, Code: protocol.ErrEmptyBody})
		return
	}
	var ve *protocol.ValidationError
	if errors.As(err, &ve) {
		writeJSON(rw, http.StatusBadRequest, protocol.Ack{Status: protocol.MalformedStatus(ve), Code: protocol.ErrProtoBadRequest})
		return
	}
	writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
}

func (s *Server) writeAgentError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrRoundInactive):
		writeJSON(rw, http.StatusOK, protocol.Ack{Status: protocol.StatusRoundInactive, Code: protocol.ErrRoundInactive})
	default:
		s.logf("agent: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, errorBody{Error: msg, Code: code})
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
