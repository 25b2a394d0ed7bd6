package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Profile holds the display attributes printed on a card. The credential
// lifecycle never reads it.
type Profile struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	Rank      string `json:"rank"`
	IDNumber  string `json:"id_number"`
	Unit      string `json:"unit"`
	PhotoURL  string `json:"photo_url"`
}

// Card pairs a profile with the QR image of its active credential.
type Card struct {
	Profile Profile
	QR      []byte
	EventID string
}

type cardView struct {
	Profile Profile
	QR      template.URL
	EventID string
	Initial string
}

// CardRenderer produces printable HTML for single cards and sheets.
type CardRenderer struct {
	tmpl  *template.Template
	title string
}

// NewCardRenderer parses the embedded templates. title is printed on sheets.
func NewCardRenderer(title string) (*CardRenderer, error) {
	tmpl, err := template.New("cards").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("card: parse templates: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = "Check-in credentials"
	}
	return &CardRenderer{tmpl: tmpl, title: title}, nil
}

// RenderCard renders one card as a standalone HTML document.
func (r *CardRenderer) RenderCard(card Card) ([]byte, error) {
	view, err := newCardView(card)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "card_page.tmpl", view); err != nil {
		return nil, fmt.Errorf("card: render %s: %w", card.Profile.SubjectID, err)
	}
	return buf.Bytes(), nil
}

// RenderSheet lays out many cards on one printable page.
func (r *CardRenderer) RenderSheet(cards []Card) ([]byte, error) {
	if len(cards) == 0 {
		return nil, errors.New("card: sheet has no cards")
	}

	views := make([]cardView, 0, len(cards))
	for _, card := range cards {
		view, err := newCardView(card)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	data := struct {
		Title string
		Cards []cardView
	}{Title: r.title, Cards: views}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "sheet.tmpl", data); err != nil {
		return nil, fmt.Errorf("card: render sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func newCardView(card Card) (cardView, error) {
	if card.Profile.SubjectID == "" {
		return cardView{}, errors.New("card: subject id is required")
	}
	if len(card.QR) == 0 {
		return cardView{}, fmt.Errorf("card: %s has no qr image", card.Profile.SubjectID)
	}

	name := strings.TrimSpace(card.Profile.Name)
	if name == "" {
		name = card.Profile.SubjectID
	}
	card.Profile.Name = name

	return cardView{
		Profile: card.Profile,
		// DataURL output is base64 only, so it is safe to mark as a URL.
		QR:      template.URL(DataURL(card.QR)),
		EventID: card.EventID,
		Initial: strings.ToUpper(string([]rune(name)[:1])),
	}, nil
}
