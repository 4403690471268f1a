package notifications

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Renderer turns a Message into HTML and plain-text bodies.
type Renderer struct {
	html map[enums.NotificationTemplate]*htmltemplate.Template
	text map[enums.NotificationTemplate]*texttemplate.Template
}

// NewRenderer parses every embedded template; a missing file is an error.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		html: make(map[enums.NotificationTemplate]*htmltemplate.Template),
		text: make(map[enums.NotificationTemplate]*texttemplate.Template),
	}
	for _, name := range enums.NotificationTemplates() {
		h, err := htmltemplate.New(name.String()).Funcs(htmltemplate.FuncMap{"money": money}).ParseFS(templateFS, "templates/_items.html", "templates/"+name.String()+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		t, err := texttemplate.New(name.String()).Funcs(texttemplate.FuncMap{"money": money}).ParseFS(templateFS, "templates/_items.txt", "templates/"+name.String()+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		r.html[name] = h
		r.text[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(msg Message) (html string, plain string, err error) {
	h, ok := r.html[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", msg.Template)
	}
	var hb, tb bytes.Buffer
	if err := h.ExecuteTemplate(&hb, msg.Template.String()+".html", msg.Data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := r.text[msg.Template].ExecuteTemplate(&tb, msg.Template.String()+".txt", msg.Data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// money prints an amount in whole currency units. Queue payloads arrive as float64 after
// JSON decoding, which templates would otherwise print as 1e+06.
func money(v any) string {
	var d decimal.Decimal
	switch n := v.(type) {
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case float64:
		d = decimal.NewFromFloat(n)
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return n.String()
		}
		d = parsed
	default:
		return fmt.Sprint(v)
	}
	return d.String()
}
