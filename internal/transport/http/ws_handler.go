package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

func message(typ string, payload any) outboundMessage[any] {
	return outboundMessage[any]{Type: typ, Payload: payload}
}

func errorMessage(err error) outboundMessage[any] {
	payload, _ := toErrorPayload(err)
	return message("error", payload)
}

// ServeWS runs one daily quiz session over a websocket.
//
// The server opens with "availability". If the gate refuses, the connection
// is closed after it. Otherwise the client sends "start" and then one
// "answer" per question; the server replies with "started", "answerResult",
// "question" and exactly one "finished", which is also pushed when the
// session runs out of time between answers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	availability, err := h.service.CheckAvailability(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	_ = conn.WriteJSON(message("availability", availability))
	if availability.Status != domain.StatusReady {
		return
	}

	state, err := h.service.Open(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := state.SessionID
	defer func() {
		// the request context is gone once the client hangs up
		if err := h.service.Release(context.Background(), sessionID); err != nil {
			h.log.Warn().Err(err).Str("session_id", sessionID).Msg("release failed")
		}
	}()

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// turn serialises an answer round with the timeout push, so "finished"
	// always follows the "answerResult" that caused it.
	var turn sync.Mutex
	var finishOnce sync.Once
	finish := func(sum *domain.SessionSummary) {
		finishOnce.Do(func() {
			send <- message("finished", sum)
		})
	}

	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				// keep draining so senders never block on a dead peer
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("ws write error")
				failed = true
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !update.Status.Finished() {
					continue
				}
				turn.Lock()
				select {
				case <-closeSignals:
				default:
					finish(update.Summary)
				}
				turn.Unlock()
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		turn.Lock()
		switch inbound.Type {
		case "start":
			h.start(ctx, sessionID, send)
		case "answer":
			var payload domain.AnswerSubmission
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- message("error", errorPayload{Code: "invalid_request", Message: "invalid answer payload"})
				break
			}
			h.answer(ctx, sessionID, payload, send, finish)
		case "progress":
			if progress, err := h.service.Progress(ctx, sessionID); err != nil {
				send <- errorMessage(err)
			} else {
				send <- message("progress", progress)
			}
		default:
			send <- message("error", errorPayload{Code: "invalid_request", Message: "unsupported message type"})
		}
		turn.Unlock()
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) start(ctx context.Context, sessionID string, send chan<- outboundMessage[any]) {
	state, err := h.service.Start(ctx, sessionID)
	if err != nil && !(errors.Is(err, domain.ErrPersistence) && state.Status == domain.StatusInProgress) {
		send <- errorMessage(err)
		return
	}
	send <- message("started", newSessionView(state))
	if err != nil {
		send <- errorMessage(err)
	}
}

func (h *WSHandler) answer(ctx context.Context, sessionID string, sub domain.AnswerSubmission, send chan<- outboundMessage[any], finish func(*domain.SessionSummary)) {
	result, err := h.service.SubmitAnswer(ctx, sessionID, sub)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		send <- errorMessage(err)
		return
	}

	send <- message("answerResult", answerResultView{
		QuestionIndex:      sub.QuestionIndex,
		Correct:            result.Answer.IsCorrect,
		CorrectOptionIndex: result.CorrectOptionIndex,
		Explanation:        result.Explanation,
		Awarded:            result.Answer.ScoreAwarded,
		Breakdown:          result.Breakdown,
		Progress:           result.Progress,
		Status:             result.Status,
	})
	if err != nil {
		// the answer counted; storage catches up on a later flush
		send <- errorMessage(err)
	}
	if result.Next != nil {
		send <- message("question", newQuestionView(sub.QuestionIndex+1, *result.Next))
	}
	if result.Finished {
		finish(result.Summary)
	}
}
