package web

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/mfsw-panel/panel"
	logp "github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//go:embed index.html
var index string

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "web",
})

// Logger is the web logger, exposed so the binary can change its level.
var Logger = log

const sendBuffer = 64

// Clicker receives clicks from the page.
type Clicker interface {
	Click(id panel.ElementID)
}

// Mux is satisfied by both http.ServeMux and the HomeKit server mux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

type Element struct {
	ID       panel.ElementID `json:"id"`
	Text     string          `json:"text"`
	Disabled bool            `json:"disabled"`
	Visible  bool            `json:"visible"`
}

type message struct {
	Type     string          `json:"type"`
	ID       panel.ElementID `json:"id,omitempty"`
	Text     *string         `json:"text,omitempty"`
	Disabled *bool           `json:"disabled,omitempty"`
	Visible  *bool           `json:"visible,omitempty"`
	Message  string          `json:"message,omitempty"`
	Elements []Element       `json:"elements,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan message
}

// Page is the control page. It keeps the element state on the server and
// mirrors it to every connected browser.
type Page struct {
	mu       sync.Mutex
	elements map[panel.ElementID]*Element
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	tpl      *template.Template
}

func New() *Page {
	p := &Page{
		elements: map[panel.ElementID]*Element{},
		clients:  map[*client]struct{}{},
	}
	for _, id := range panel.Elements() {
		p.elements[id] = &Element{ID: id, Visible: id != panel.ConfirmModal}
	}
	p.tpl = template.Must(template.New("index").Funcs(template.FuncMap{
		"text": func(id string) string {
			return p.element(panel.ElementID(id)).Text
		},
		"disabled": func(id string) bool {
			return p.element(panel.ElementID(id)).Disabled
		},
		"hidden": func(id string) bool {
			return !p.element(panel.ElementID(id)).Visible
		},
	}).Parse(index))
	return p
}

// Mount registers the page, its websocket, and forwards clicks to clicker.
func (p *Page) Mount(mux Mux, clicker Clicker) {
	mux.Handle("/", http.HandlerFunc(p.serveIndex))
	mux.Handle("/ws", p.serveWS(clicker))
}

func (p *Page) SetText(id panel.ElementID, text string) {
	p.update(id, func(e *Element) bool {
		if e.Text == text {
			return false
		}
		e.Text = text
		return true
	}, message{Type: "patch", ID: id, Text: &text})
}

func (p *Page) SetDisabled(id panel.ElementID, disabled bool) {
	p.update(id, func(e *Element) bool {
		if e.Disabled == disabled {
			return false
		}
		e.Disabled = disabled
		return true
	}, message{Type: "patch", ID: id, Disabled: &disabled})
}

func (p *Page) SetVisible(id panel.ElementID, visible bool) {
	p.update(id, func(e *Element) bool {
		if e.Visible == visible {
			return false
		}
		e.Visible = visible
		return true
	}, message{Type: "patch", ID: id, Visible: &visible})
}

func (p *Page) Alert(msg string) {
	log.Info("alert", "message", msg)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcastLocked(message{Type: "alert", Message: msg})
}

// Snapshot returns every element, sorted by id.
func (p *Page) Snapshot() []Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Close disconnects every browser.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cl := range p.clients {
		p.dropLocked(cl)
	}
}

func (p *Page) element(id panel.ElementID) Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.elements[id]; ok {
		return *e
	}
	return Element{ID: id}
}

func (p *Page) update(id panel.ElementID, fn func(e *Element) bool, patch message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elements[id]
	if !ok {
		log.Warn("update on unknown element", "id", id)
		return
	}
	if fn(e) {
		p.broadcastLocked(patch)
	}
}

func (p *Page) snapshotLocked() []Element {
	ids := maps.Keys(p.elements)
	slices.Sort(ids)
	result := make([]Element, 0, len(ids))
	for _, id := range ids {
		result = append(result, *p.elements[id])
	}
	return result
}

func (p *Page) broadcastLocked(m message) {
	for cl := range p.clients {
		select {
		case cl.send <- m:
		default:
			log.Warn("dropping slow client", "addr", cl.conn.RemoteAddr())
			p.dropLocked(cl)
		}
	}
}

func (p *Page) dropLocked(cl *client) {
	if _, ok := p.clients[cl]; !ok {
		return
	}
	delete(p.clients, cl)
	close(cl.send)
	_ = cl.conn.Close()
}

// clickable mirrors the browser: disabled or hidden elements get no clicks.
func (p *Page) clickable(id panel.ElementID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elements[id]
	if !ok || e.Disabled || !e.Visible {
		return false
	}
	if parent, ok := panel.ParentOf(id); ok {
		if pe, ok := p.elements[parent]; ok && !pe.Visible {
			return false
		}
	}
	return true
}

func (p *Page) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.tpl.Execute(w, nil); err != nil {
		log.Error("could not render page", "err", err)
	}
}

func (p *Page) serveWS(clicker Clicker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := p.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("could not upgrade connection", "err", err)
			return
		}
		cl := &client{
			conn: conn,
			send: make(chan message, sendBuffer),
		}

		p.mu.Lock()
		cl.send <- message{Type: "snapshot", Elements: p.snapshotLocked()}
		p.clients[cl] = struct{}{}
		p.mu.Unlock()
		log.Debug("browser connected", "addr", conn.RemoteAddr())

		go writeLoop(cl)
		p.readLoop(cl, clicker)

		p.mu.Lock()
		p.dropLocked(cl)
		p.mu.Unlock()
		log.Debug("browser disconnected", "addr", conn.RemoteAddr())
	}
}

func (p *Page) readLoop(cl *client, clicker Clicker) {
	for {
		_, b, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var in message
		if err := json.Unmarshal(b, &in); err != nil {
			log.Warn("ignoring malformed message", "err", err)
			continue
		}
		if in.Type != "click" {
			log.Debug("ignoring message", "type", in.Type)
			continue
		}
		if !p.clickable(in.ID) {
			log.Debug("ignoring click on inactive element", "id", in.ID)
			continue
		}
		clicker.Click(in.ID)
	}
}

func writeLoop(cl *client) {
	for m := range cl.send {
		if err := cl.conn.WriteJSON(m); err != nil {
			_ = cl.conn.Close()
			for range cl.send {
			}
			return
		}
	}
}
