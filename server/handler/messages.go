package handler

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"

	"chatroom/model"
	"chatroom/server/room"
	"chatroom/server/storage"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

const maxRequestBytes = 64 << 10

var (
	validate = validator.New()
	// bodies are plain text; markup is stripped
	bodyPolicy = bluemonday.StrictPolicy()
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessagesHandler struct {
	history *storage.MessageLog
	rooms   *room.Manager
	log     zerolog.Logger
}

func NewMessagesHandler(history *storage.MessageLog, rooms *room.Manager, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{
		history: history,
		rooms:   rooms,
		log:     log.With().Str("component", "messages").Logger(),
	}
}

// List serves the whole history, oldest first.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.All())
}

// Create stores a posted message and broadcasts it on the messages channel.
func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.PostRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON format"})
		return
	}
	req.Body = sanitizeBody(req.Body)
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: validationMessage(err)})
		return
	}

	msg, err := h.history.Append(req.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("append failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "could not store message"})
		return
	}
	if err := h.broadcast(msg); err != nil {
		h.log.Error().Err(err).Str("id", string(msg.ID)).Msg("broadcast failed")
	}
	h.log.Debug().Str("id", string(msg.ID)).Int("length", len(msg.Body)).Msg("message created")
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessagesHandler) broadcast(msg model.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	identifier, err := model.Identifier(model.DefaultChannel)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(model.Frame{Identifier: identifier, Message: raw})
	if err != nil {
		return err
	}
	h.rooms.GetRoom(model.DefaultChannel).Broadcast(frame)
	return nil
}

func sanitizeBody(body string) string {
	return strings.TrimSpace(html.UnescapeString(bodyPolicy.Sanitize(body)))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Tag() {
	case "required":
		return "body must not be empty"
	case "max":
		return "body must be at most 500 characters"
	default:
		return verrs[0].Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
