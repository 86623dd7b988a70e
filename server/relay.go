package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/web"
	"go.uber.org/zap"
)

const (
	EventAudioMessage = "audio_message"
	EventTextResponse = "text_response"

	// DefaultMaxMessageSize bounds one inbound frame.
	DefaultMaxMessageSize = 10 << 20
)

// Event is the envelope of every websocket frame in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AudioMessage struct {
	Audio string `json:"audio"` // base64
}

type TextResponse struct {
	Text string `json:"text"`
}

type RelayConfig struct {
	Transcriber types.Transcriber
	Generator   types.Generator
	Logger      *zap.Logger
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
	// MaxMessageSize is the largest frame accepted before the connection is
	// closed. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64
}

// Relay turns audio messages into spoken-style replies over a websocket.
// Each connection is served by one loop, so its messages are handled one at
// a time and in order.
type Relay struct {
	transcriber types.Transcriber
	generator   types.Generator
	log         *zap.Logger
	upgrader    websocket.Upgrader
	maxMessage  int64
	page        *template.Template
}

func NewRelay(config RelayConfig) (*Relay, error) {
	if config.Transcriber == nil || config.Generator == nil {
		return nil, errors.New("relay requires a transcriber and a generator")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	page, err := web.Relay()
	if err != nil {
		return nil, err
	}

	return &Relay{
		transcriber: config.Transcriber,
		generator:   config.Generator,
		log:         config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		maxMessage: config.MaxMessageSize,
		page:       page,
	}, nil
}

func (s *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", health)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	var h http.Handler = mux
	h = AccessLog(s.log)(h)
	h = Recoverer(s.log)(h)
	h = RequestID()(h)
	return h
}

func (s *Relay) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, nil); err != nil {
		s.log.Error("template execute", zap.Error(err))
	}
}

func (s *Relay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxMessage)

	log := s.log.With(zap.String("req_id", RequestIDFrom(r.Context())))
	log.Debug("client connected", zap.String("remote", remoteIP(r.RemoteAddr)))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("error reading message", zap.Error(err))
			}
			return
		}

		s.handleMessage(r.Context(), conn, message, log)
	}
}

func (s *Relay) handleMessage(ctx context.Context, conn *websocket.Conn, raw []byte, log *zap.Logger) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Warn("error unmarshaling message", zap.Error(err))
		return
	}
	if ev.Event != EventAudioMessage {
		log.Warn("unknown event", zap.String("event", ev.Event))
		return
	}

	var msg AudioMessage
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			log.Warn("error unmarshaling audio message", zap.Error(err))
			return
		}
	}
	// the payload is opaque to the relay: anything that is not base64 is
	// handed to the transcriber as sent
	audio, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		log.Debug("audio is not base64, passing it through", zap.Error(err))
		audio = []byte(msg.Audio)
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Error("transcription failed", zap.Error(err))
		return
	}

	text, err := s.generator.Generate(ctx, transcript)
	if err != nil {
		// the client gets nothing for this message and may send the next one
		log.Error("generation failed", zap.Error(err), zap.Int("audio_bytes", len(audio)))
		return
	}

	s.send(conn, EventTextResponse, TextResponse{Text: text}, log)
}

func (s *Relay) send(conn *websocket.Conn, event string, payload any, log *zap.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("error encoding message", zap.Error(err))
		return
	}
	if err := conn.WriteJSON(Event{Event: event, Data: data}); err != nil {
		log.Warn("error sending message", zap.Error(err))
	}
}
