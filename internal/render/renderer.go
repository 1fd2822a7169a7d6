package render

import (
	"bytes"
	"container/list"
	"fmt"
	"html/template"
	"time"

	"chat-widget/internal/models"
)

// DateLayout matches the hu-HU locale string of a timestamp.
const DateLayout = "2006. 01. 02. 15:04:05"

// Op kinds pushed to the browser.
const (
	OpAppend     = "append"
	OpRemove     = "remove"
	OpSetText    = "set_text"
	OpReset      = "reset"
	OpPopupOpen  = "popup_open"
	OpPopupClose = "popup_close"
)

// Op is one DOM patch operation.
type Op struct {
	Op     string `json:"op"`
	ID     string `json:"id,omitempty"`
	HTML   string `json:"html,omitempty"`
	Text   string `json:"text,omitempty"`
	Scroll bool   `json:"scroll,omitempty"`
}

// Sink receives ops in the order they are produced.
type Sink interface {
	Send(op Op) error
}

var (
	itemTemplate = template.Must(template.New("item").Parse(`<div class="message" data-id="{{.ID}}">
  <i class="fas fa-user"></i>
  <div>
    <span class="username">{{.Username}} <time datetime="{{.ISO}}">{{.DateText}}</time></span>
    <br>
    <span class="message-text">{{.Text}}</span>
  </div>
  <div class="message-edit-buttons">
    <i class="fas fa-trash-alt" data-action="delete" data-id="{{.ID}}"></i>
    <i class="fas fa-pen" data-action="edit" data-id="{{.ID}}"></i>
  </div>
</div>`))

	popupTemplate = template.Must(template.New("popup").Parse(`<div class="popup-container" id="popup">
  <div class="edit-message" id="edit-message" data-id="{{.ID}}">
    <div class="button" data-action="close_edit">Close <i class="fa fa-window-close" aria-hidden="true"></i></div>
    <textarea id="edit" cols="30" rows="10">{{.Text}}</textarea>
    <div class="button" data-action="save_edit">Save message <i class="fas fa-save"></i></div>
  </div>
</div>`))
)

type itemView struct {
	ID       string
	Username string
	Text     string
	ISO      string
	DateText string
}

type handle struct {
	msg  models.Message
	elem *list.Element
}

// Renderer owns the rendered message list of one client. It is not safe for
// concurrent use; callers serialize access.
type Renderer struct {
	sink    Sink
	loc     *time.Location
	order   *list.List
	handles map[string]*handle
}

// NewRenderer creates a Renderer writing ops to sink. Dates are shown in loc.
func NewRenderer(sink Sink, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{
		sink:    sink,
		loc:     loc,
		order:   list.New(),
		handles: make(map[string]*handle),
	}
}

// FormatDate renders t the way list items show it.
func (r *Renderer) FormatDate(t time.Time) string {
	return t.In(r.loc).Format(DateLayout)
}

// Mount appends msg to the end of the list.
func (r *Renderer) Mount(msg models.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("mount: message without id")
	}
	if _, ok := r.handles[msg.ID]; ok {
		return fmt.Errorf("mount %s: already rendered", msg.ID)
	}
	html, err := r.renderItem(msg)
	if err != nil {
		return fmt.Errorf("mount %s: %w", msg.ID, err)
	}
	h := &handle{msg: msg}
	h.elem = r.order.PushBack(msg.ID)
	r.handles[msg.ID] = h
	return r.sink.Send(Op{Op: OpAppend, ID: msg.ID, HTML: html, Scroll: true})
}

// Unmount removes the item for id. It reports false when nothing is rendered
// under id.
func (r *Renderer) Unmount(id string) (bool, error) {
	h, ok := r.handles[id]
	if !ok {
		return false, nil
	}
	r.order.Remove(h.elem)
	delete(r.handles, id)
	return true, r.sink.Send(Op{Op: OpRemove, ID: id})
}

// SetText overwrites the displayed text of id.
func (r *Renderer) SetText(id, text string) (bool, error) {
	h, ok := r.handles[id]
	if !ok {
		return false, nil
	}
	h.msg.Message = text
	return true, r.sink.Send(Op{Op: OpSetText, ID: id, Text: text})
}

// Text returns the displayed text of id.
func (r *Renderer) Text(id string) (string, bool) {
	h, ok := r.handles[id]
	if !ok {
		return "", false
	}
	return h.msg.Message, true
}

// Has reports whether id is rendered.
func (r *Renderer) Has(id string) bool {
	_, ok := r.handles[id]
	return ok
}

// Len returns the number of rendered items.
func (r *Renderer) Len() int {
	return len(r.handles)
}

// Items returns the rendered messages in list order.
func (r *Renderer) Items() []models.Message {
	items := make([]models.Message, 0, len(r.handles))
	for e := r.order.Front(); e != nil; e = e.Next() {
		items = append(items, r.handles[e.Value.(string)].msg)
	}
	return items
}

// Reset clears the list.
func (r *Renderer) Reset() error {
	r.order.Init()
	r.handles = make(map[string]*handle)
	return r.sink.Send(Op{Op: OpReset})
}

// Popup shows the edit overlay for id pre-filled with text.
func (r *Renderer) Popup(id, text string) error {
	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, itemView{ID: id, Text: text}); err != nil {
		return fmt.Errorf("popup %s: %w", id, err)
	}
	return r.sink.Send(Op{Op: OpPopupOpen, ID: id, HTML: buf.String()})
}

// ClosePopup removes the edit overlay.
func (r *Renderer) ClosePopup() error {
	return r.sink.Send(Op{Op: OpPopupClose})
}

func (r *Renderer) renderItem(msg models.Message) (string, error) {
	var buf bytes.Buffer
	err := itemTemplate.Execute(&buf, itemView{
		ID:       msg.ID,
		Username: msg.Username,
		Text:     msg.Message,
		ISO:      msg.Date.UTC().Format(time.RFC3339),
		DateText: r.FormatDate(msg.Date),
	})
	return buf.String(), err
}
