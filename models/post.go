package models

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ShortDescriptionLength is the number of runes of body shown in post listings.
const ShortDescriptionLength = 200

var summaryPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// Post represents a blog post authored by an admin.
type Post struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Body             string    `gorm:"type:text;not null" json:"body"`
	ImageURL         *string   `gorm:"size:1024" json:"image_url"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	User             User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments         []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ShortDescription string    `gorm:"-" json:"short_description,omitempty"`
}

// Summarize fills ShortDescription with the first runes of the body as plain
// text. Tags are stripped before cutting so no markup is left half open.
func (p *Post) Summarize() {
	text := strings.Join(strings.Fields(html.UnescapeString(summaryPolicy.Sanitize(p.Body))), " ")
	if utf8.RuneCountInString(text) <= ShortDescriptionLength {
		p.ShortDescription = text
		return
	}
	p.ShortDescription = string([]rune(text)[:ShortDescriptionLength])
}
