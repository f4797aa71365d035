package docs

import (
	"strings"
	"time"
)

// Kind discriminates the two document aggregates the editor can hold.
type Kind string

const (
	KindResume      Kind = "resume"
	KindCoverLetter Kind = "coverLetter"
)

// ValidKind reports whether k is a known document kind.
func ValidKind(k Kind) bool {
	return k == KindResume || k == KindCoverLetter
}

func defaultTitle(k Kind) string {
	if k == KindCoverLetter {
		return "Untitled cover letter"
	}
	return "Untitled resume"
}

// DateRange is a start/end pair of ISO dates (2006-01-02). A nil End means
// the entry is ongoing; it is never replaced with a sentinel date.
type DateRange struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// Contact is the document owner's contact block.
type Contact struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	JobTitle        string `json:"jobTitle"`
	Location        string `json:"location"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	ApplicationLink string `json:"applicationLink,omitempty"`
}

// Experience is a work-experience entry.
type Experience struct {
	Position    string    `json:"position"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Dates       DateRange `json:"dates"`
}

// Education is an education entry.
type Education struct {
	Degree      string    `json:"degree"`
	School      string    `json:"school"`
	Description string    `json:"description"`
	Dates       DateRange `json:"dates"`
}

// Achievement is a dated accomplishment entry.
type Achievement struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	AchievedAt  *string `json:"achievedAt,omitempty"`
}

// Recipient is a cover-letter recipient entry.
type Recipient struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Address string `json:"address"`
}

// JobDescriptionEntry is a cover-letter job-description entry.
type JobDescriptionEntry struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Styling holds the visual customization fields of a document.
type Styling struct {
	ThemeColor  string `json:"themeColor"`
	BorderStyle string `json:"borderStyle"`
	TemplateID  int    `json:"templateId"`
	FontFamily  string `json:"fontFamily,omitempty"`
}

// Document is the resume or cover-letter aggregate being edited. Repeated
// sections are ordered slices; their order is user-chosen and preserved.
type Document struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"-"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Styling Styling `json:"styling"`
	Contact Contact `json:"contact"`

	Experiences     []Experience          `json:"experiences,omitempty"`
	Educations      []Education           `json:"educations,omitempty"`
	Achievements    []Achievement         `json:"achievements,omitempty"`
	Recipients      []Recipient           `json:"recipients,omitempty"`
	JobDescriptions []JobDescriptionEntry `json:"jobDescriptions,omitempty"`

	Opening    string `json:"opening,omitempty"`
	LetterBody string `json:"letterBody,omitempty"`
	Closing    string `json:"closing,omitempty"`

	PhotoURL string `json:"photoUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func (e Experience) empty() bool {
	return blank(e.Position) && blank(e.Company) && blank(e.Description) &&
		e.Dates.Start == nil && e.Dates.End == nil
}

func (e Education) empty() bool {
	return blank(e.Degree) && blank(e.School) && blank(e.Description) &&
		e.Dates.Start == nil && e.Dates.End == nil
}

func (a Achievement) empty() bool {
	return blank(a.Name) && blank(a.Description) && a.AchievedAt == nil
}

func (r Recipient) empty() bool {
	return blank(r.Name) && blank(r.Company) && blank(r.Address)
}

func (j JobDescriptionEntry) empty() bool {
	return blank(j.Title) && blank(j.Body)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Pruned returns a copy of the document with all-blank section records
// removed. Blank records may exist transiently while the user edits, but
// they never reach persistence.
func (d Document) Pruned() Document {
	out := d
	out.Experiences = nil
	for _, e := range d.Experiences {
		if !e.empty() {
			out.Experiences = append(out.Experiences, e)
		}
	}
	out.Educations = nil
	for _, e := range d.Educations {
		if !e.empty() {
			out.Educations = append(out.Educations, e)
		}
	}
	out.Achievements = nil
	for _, a := range d.Achievements {
		if !a.empty() {
			out.Achievements = append(out.Achievements, a)
		}
	}
	out.Recipients = nil
	for _, r := range d.Recipients {
		if !r.empty() {
			out.Recipients = append(out.Recipients, r)
		}
	}
	out.JobDescriptions = nil
	for _, j := range d.JobDescriptions {
		if !j.empty() {
			out.JobDescriptions = append(out.JobDescriptions, j)
		}
	}
	return out
}
