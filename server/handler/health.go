package handler

import (
	"net/http"
	"time"

	"chatroom/server/storage"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Messages  int       `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

func HandleHealth(history *storage.MessageLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "UP",
			Messages:  history.Len(),
			Timestamp: time.Now(),
		})
	}
}
