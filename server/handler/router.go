package handler

import (
	"chatroom/model"
	"chatroom/server/room"
	"chatroom/server/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func NewRouter(history *storage.MessageLog, rooms *room.Manager, log zerolog.Logger) *mux.Router {
	messages := NewMessagesHandler(history, rooms, log)

	r := mux.NewRouter()
	r.HandleFunc("/health", HandleHealth(history)).Methods("GET")
	r.HandleFunc("/messages", messages.List).Methods("GET")
	r.HandleFunc("/messages", messages.Create).Methods("POST")
	r.HandleFunc("/cable", HandleCable(rooms, log, model.DefaultChannel))
	return r
}
