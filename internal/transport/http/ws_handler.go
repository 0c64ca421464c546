package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type registerPayload struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// focusPayload carries browser signals: visibility uses Hidden, focus uses
// Focused. Fullscreen changes need no payload.
type focusPayload struct {
	Hidden  bool `json:"hidden"`
	Focused bool `json:"focused"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

type terminatedPayload struct {
	Message    string `json:"message"`
	Violations int    `json:"violations"`
}

// ServeWS upgrades the request and runs one exam session for the lifetime of
// the connection. The browser relays its focus signals over the same socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	feed := app.NewFocusFeed()
	session := h.service.NewSession(quizID, feed)
	events, cancel := session.Subscribe()
	defer cancel()
	defer session.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				for _, msg := range eventMessages(ev) {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKindOf(err)}})
	}
	begin := func() {
		go func() {
			if err := session.Begin(ctx); err != nil && !errors.Is(err, domain.ErrInvalidStage) {
				log.Printf("session %s: resolve failed: %v", quizID, err)
			}
		}()
	}

	begin()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "register":
			var payload registerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid register payload"))
				continue
			}
			if err := session.Register(ctx, domain.Student{Name: payload.Name, ID: payload.ID, Email: payload.Email}); err != nil {
				fail(err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid answer payload"))
				continue
			}
			if err := session.AnswerChange(payload.QuestionID, payload.Value); err != nil {
				fail(err)
			}
		case "next":
			session.Next()
		case "previous":
			session.Previous()
		case "submit":
			// the outcome reaches the client as confirm/result events
			if _, err := session.Submit(ctx); err != nil {
				fail(err)
			}
		case "quit":
			session.Quit()
		case "retry":
			begin()
		case "visibility", "focus", "fullscreen":
			var payload focusPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					fail(errors.New("invalid focus payload"))
					continue
				}
			}
			feed.Emit(focusEvent(inbound.Type, payload))
		default:
			fail(errors.New("unsupported message type"))
		}
	}

	cancelCtx()
	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func focusEvent(kind string, payload focusPayload) domain.FocusEvent {
	switch kind {
	case "visibility":
		return domain.FocusEvent{Kind: domain.FocusVisibility, Away: payload.Hidden}
	case "focus":
		return domain.FocusEvent{Kind: domain.FocusWindow, Away: !payload.Focused}
	default:
		return domain.FocusEvent{Kind: domain.FocusFullscreen}
	}
}

// eventMessages maps a session event to what the browser receives. A result
// forced by violations is followed by a terminated notice.
func eventMessages(ev domain.Event) []outboundMessage[any] {
	msgs := []outboundMessage[any]{{Type: string(ev.Type), Payload: ev}}
	if ev.Type == domain.EventResult && ev.Result != nil && !ev.Result.Completed {
		msgs = append(msgs, outboundMessage[any]{Type: "terminated", Payload: terminatedPayload{
			Message:    domain.ErrSecurityTermination.Error(),
			Violations: ev.Result.SecurityViolations,
		}})
	}
	return msgs
}

func errorKindOf(err error) string {
	var validation *domain.ValidationError
	var resolve *domain.ResolveError
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &resolve):
		return string(resolve.Kind)
	case errors.Is(err, domain.ErrInvalidStage), errors.Is(err, domain.ErrAlreadySubmitted):
		return "stage"
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrOptionNotFound):
		return "answer"
	}
	return "error"
}
