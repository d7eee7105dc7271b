package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/giangittb112000/olympia-sub001/internal/app"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// Client roles on the realtime channel.
const (
	roleOperator = "operator"
	rolePlayer   = "player"
)

type WSHandler struct {
	service  *app.RoundService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoundService) *WSHandler {
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

type selectPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type choosePackPayload struct {
	PackSize int `json:"packSize"`
}

type gradePayload struct {
	Correct    bool `json:"correct"`
	StarActive bool `json:"starActive"`
}

type commitScorePayload struct {
	PlayerID string `json:"playerId"`
	Round    string `json:"round"`
	Delta    int    `json:"delta"`
}

type judgePayload struct {
	Candidate string `json:"candidate"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the round
// use cases. Operators drive the state machine; players may only buzz in.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	role := r.URL.Query().Get("role")
	playerID := r.URL.Query().Get("playerId")
	displayName := r.URL.Query().Get("name")
	if role == "" {
		role = rolePlayer
	}
	if matchID == "" || (role == rolePlayer && (playerID == "" || displayName == "")) {
		http.Error(w, "missing matchId, playerId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var joined domain.RoundSnapshot
	if role == roleOperator {
		joined, err = h.service.OpenMatch(r.Context(), matchID)
	} else {
		joined, err = h.service.Join(r.Context(), matchID, playerID, displayName)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), matchID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

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
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- toEnvelope(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: domain.EventRoundStateSync, Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, role, matchID, playerID, inbound, send)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, role, matchID, playerID string, inbound inboundMessage, send chan outboundMessage[any]) {
	ctx := r.Context()

	if inbound.Type == "buzz_in" {
		buzzer := playerID
		if role == roleOperator {
			// Operators may buzz on behalf of a player (fallback path).
			var payload selectPlayerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PlayerID == "" {
				send <- errorMessage("invalid buzz_in payload")
				return
			}
			buzzer = payload.PlayerID
		}
		if _, err := h.service.BuzzIn(ctx, matchID, buzzer); err != nil {
			send <- errorMessage(err.Error())
		}
		return
	}

	if role != roleOperator {
		send <- errorMessage("only the operator may send " + inbound.Type)
		return
	}

	var err error
	switch inbound.Type {
	case "select_player":
		var payload selectPlayerPayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid select_player payload")
			return
		}
		_, err = h.service.SelectPlayer(ctx, matchID, payload.PlayerID)
	case "choose_pack":
		var payload choosePackPayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid choose_pack payload")
			return
		}
		if _, err = h.service.ChoosePack(ctx, matchID, payload.PackSize); err != nil {
			// Allocation failures reach the operator only; round state is held
			// and nothing is broadcast.
			if domain.IsInsufficientQuestions(err) || errors.Is(err, domain.ErrConcurrentModification) {
				send <- outboundMessage[any]{Type: "allocation_failed", Payload: errorPayload{Message: err.Error()}}
				return
			}
		}
	case "grade_answer":
		var payload gradePayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid grade_answer payload")
			return
		}
		_, err = h.service.GradeAnswer(ctx, matchID, payload.Correct, payload.StarActive)
	case "grade_steal":
		var payload gradePayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid grade_steal payload")
			return
		}
		_, err = h.service.GradeSteal(ctx, matchID, payload.Correct)
	case "advance_question":
		_, err = h.service.AdvanceQuestion(ctx, matchID)
	case "reset_round":
		_, err = h.service.ResetRound(ctx, matchID)
	case "commit_score":
		var payload commitScorePayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid commit_score payload")
			return
		}
		_, err = h.service.CommitScore(ctx, matchID, payload.PlayerID, domain.Round(payload.Round), payload.Delta)
	case "judge_answer":
		var payload judgePayload
		if err = json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid judge_answer payload")
			return
		}
		var verdict domain.JudgeVerdict
		if verdict, err = h.service.JudgeAnswer(ctx, matchID, payload.Candidate); err == nil {
			send <- outboundMessage[any]{Type: "judge_result", Payload: verdict}
		}
	default:
		send <- errorMessage("unsupported message type")
		return
	}

	if err != nil {
		send <- errorMessage(err.Error())
	}
}

func toEnvelope(event domain.RoundEvent) outboundMessage[any] {
	switch event.Type {
	case domain.EventScoreUpdated:
		return outboundMessage[any]{Type: event.Type, Payload: event.Score}
	case domain.EventPackExhausted:
		return outboundMessage[any]{Type: event.Type, Payload: struct{}{}}
	default:
		return outboundMessage[any]{Type: event.Type, Payload: event.State}
	}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
