// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"github.com/falroman/partyquiz/internal/middleware"
	"github.com/falroman/partyquiz/internal/models"
)

// createdRoomResponse is the POST /rooms reply.
type createdRoomResponse struct {
	RoomCode string `json:"roomCode"`
	JoinURL  string `json:"joinUrl"`
}

// NewRouter assembles the HTTP surface: room creation and lookup, the join
// QR code, liveness, and the WebSocket endpoint.
func NewRouter(log *logrus.Logger, s *Server, publicBaseURL string, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(log))
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	base := strings.TrimRight(publicBaseURL, "/")

	r.Post("/rooms", func(w http.ResponseWriter, req *http.Request) {
		snap := s.lobby.CreateRoom()
		writeJSON(w, http.StatusCreated, createdRoomResponse{
			RoomCode: snap.RoomCode,
			JoinURL:  joinURL(base, snap.RoomCode),
		})
	})

	r.Get("/rooms/{code}", func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")
		snap, ok := s.lobby.GetRoom(code)
		if !ok {
			writeJSON(w, http.StatusNotFound, models.NewGameError(models.ErrRoomNotFound, "room does not exist"))
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/rooms/{code}/qr", func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")
		snap, ok := s.lobby.GetRoom(code)
		if !ok {
			writeJSON(w, http.StatusNotFound, models.NewGameError(models.ErrRoomNotFound, "room does not exist"))
			return
		}
		png, err := qrcode.Encode(joinURL(base, snap.RoomCode), qrcode.Medium, 256)
		if err != nil {
			log.WithError(err).Error("qr encode failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ws", s.WSHandler())

	return r
}

func joinURL(base, code string) string {
	return base + "/join/" + code
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
