package server

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/content"
	"github.com/xhad/speechbuddy/pkg/game"
	"github.com/xhad/speechbuddy/pkg/session"
	"github.com/xhad/speechbuddy/web"
	"go.uber.org/zap"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "sb_session"

type DashboardConfig struct {
	Answerer types.Answerer
	Sessions *session.Store
	Renderer *content.Renderer
	Logger   *zap.Logger
	// Secure marks the session cookie as HTTPS only.
	Secure bool
}

// Dashboard serves the document-grounded chat and the supporting pages.
type Dashboard struct {
	answerer types.Answerer
	sessions *session.Store
	renderer *content.Renderer
	log      *zap.Logger
	tpl      map[string]*template.Template
	secure   bool
}

type MsgView struct {
	Role string
	HTML template.HTML
}

type pageData struct {
	Title    string
	Active   string
	Warning  string
	Messages []MsgView
	Body     template.HTML
	Round    game.Round
	Notes    []string
}

func NewDashboard(config DashboardConfig) (*Dashboard, error) {
	if config.Answerer == nil || config.Sessions == nil {
		return nil, errors.New("dashboard requires an answerer and a session store")
	}
	if config.Renderer == nil {
		config.Renderer = content.NewRenderer()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	tpl, err := web.Dashboard(nil)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		answerer: config.Answerer,
		sessions: config.Sessions,
		renderer: config.Renderer,
		log:      config.Logger,
		tpl:      tpl,
		secure:   config.Secure,
	}, nil
}

func (d *Dashboard) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Recoverer(d.log))
	r.Use(AccessLog(d.log))

	r.Get("/", d.Chat)
	r.Post("/chat", d.ChatPost)
	r.Post("/chat/clear", d.ChatClear)
	r.Get("/about", d.Page("about", "About"))
	r.Get("/resources", d.Page("resources", "Resources"))
	r.Get("/game", d.Game)
	r.Post("/game/guess", d.GamePost)
	r.Post("/game/new", d.GameNew)
	r.Get("/community", d.Community)
	r.Post("/community", d.CommunityPost)
	r.Get("/health", health)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	return r
}

// session returns the caller's session, starting a new one when the cookie
// is missing or points at an unknown or expired session.
func (d *Dashboard) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if s, err := d.sessions.Get(c.Value); err == nil {
			return s
		}
	}

	s := d.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   d.secure,
		SameSite: http.SameSiteLaxMode,
	})
	d.log.Debug("session started", zap.String("session", s.ID))
	return s
}

func (d *Dashboard) Chat(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	d.renderChat(w, r, s)
}

func (d *Dashboard) renderChat(w http.ResponseWriter, r *http.Request, s *session.Session) {
	turns := s.Messages()
	views := make([]MsgView, 0, len(turns))
	for _, t := range turns {
		html, err := d.renderer.Render(t.Content)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		views = append(views, MsgView{Role: string(t.Role), HTML: html})
	}
	d.render(w, "chat", pageData{Title: "Chat", Active: "chat", Messages: views}, http.StatusOK)
}

// ChatPost sends the message through the chain and records both turns.
func (d *Dashboard) ChatPost(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	msg := r.FormValue("message")

	history, err := s.History(r.Context())
	if err != nil {
		d.fail(w, r, err)
		return
	}
	s.Append(models.NewTurn(models.RoleUser, msg))

	start := time.Now()
	answer, err := d.answerer.Answer(r.Context(), msg, history)
	if err != nil {
		d.fail(w, r, err)
		return
	}
	d.log.Info("answered",
		zap.String("session", s.ID),
		zap.Duration("latency", time.Since(start)),
	)

	s.Append(models.NewTurn(models.RoleAssistant, answer))
	if err := s.Remember(r.Context(), msg, answer); err != nil {
		d.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (d *Dashboard) ChatClear(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	if err := s.Reset(r.Context()); err != nil {
		d.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Page serves an embedded markdown page.
func (d *Dashboard) Page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := d.renderer.Page(name)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		d.render(w, "page", pageData{Title: title, Active: name, Body: body}, http.StatusOK)
	}
}

func (d *Dashboard) Game(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	d.renderGame(w, s, "")
}

func (d *Dashboard) renderGame(w http.ResponseWriter, s *session.Session, warning string) {
	d.render(w, "game", pageData{Title: "Word game", Active: "game", Round: s.Round(), Warning: warning}, http.StatusOK)
}

func (d *Dashboard) GamePost(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	if _, err := s.Guess(r.FormValue("guess")); errors.Is(err, game.ErrEmptyGuess) {
		d.renderGame(w, s, err.Error())
		return
	} else if err != nil {
		d.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/game", http.StatusSeeOther)
}

func (d *Dashboard) GameNew(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	d.sessions.NewRound(s)
	http.Redirect(w, r, "/game", http.StatusSeeOther)
}

func (d *Dashboard) Community(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	d.renderCommunity(w, s, "")
}

func (d *Dashboard) renderCommunity(w http.ResponseWriter, s *session.Session, warning string) {
	d.render(w, "community", pageData{Title: "Community", Active: "community", Notes: s.Notes(), Warning: warning}, http.StatusOK)
}

func (d *Dashboard) CommunityPost(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	if err := s.AddNote(r.FormValue("note")); errors.Is(err, session.ErrEmptyNote) {
		d.renderCommunity(w, s, err.Error())
		return
	} else if err != nil {
		d.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/community", http.StatusSeeOther)
}

func (d *Dashboard) render(w http.ResponseWriter, name string, data pageData, status int) {
	t, ok := d.tpl[name]
	if !ok {
		d.log.Error("unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		d.log.Error("template execute", zap.String("template", name), zap.Error(err))
	}
}

// fail logs err and answers with a plain 500.
func (d *Dashboard) fail(w http.ResponseWriter, r *http.Request, err error) {
	d.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("req_id", RequestIDFrom(r.Context())),
		zap.Error(err),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
