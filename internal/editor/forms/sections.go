package forms

import (
	"regexp"
	"time"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/state"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var borderStyles = map[string]struct{}{
	"square":  {},
	"circle":  {},
	"rounded": {},
}

// DetailsForm edits the document's title and description.
type DetailsForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate returns the patch for a valid form, or field errors.
func (f DetailsForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	if blank(f.Title) {
		errs.add("title", "title is required")
	}
	if len(f.Title) > 120 {
		errs.add("title", "must be at most 120 characters")
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	return state.Patch{Title: &f.Title, Description: &f.Description}, nil
}

// StylingForm edits theme color, border style, template, and font.
type StylingForm struct {
	ThemeColor  string `json:"themeColor"`
	BorderStyle string `json:"borderStyle"`
	TemplateID  int    `json:"templateId"`
	FontFamily  string `json:"fontFamily"`
}

func (f StylingForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	if !hexColor.MatchString(f.ThemeColor) {
		errs.add("themeColor", "must be a #rrggbb color")
	}
	if _, ok := borderStyles[f.BorderStyle]; !ok {
		errs.add("borderStyle", "unknown border style")
	}
	if f.TemplateID < 1 {
		errs.add("templateId", "must be a positive template id")
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	styling := docs.Styling{
		ThemeColor:  f.ThemeColor,
		BorderStyle: f.BorderStyle,
		TemplateID:  f.TemplateID,
		FontFamily:  f.FontFamily,
	}
	return state.Patch{Styling: &styling}, nil
}

// ContactForm edits the owner contact block.
type ContactForm struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	JobTitle        string `json:"jobTitle"`
	Location        string `json:"location"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	ApplicationLink string `json:"applicationLink"`
}

func (f ContactForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	if blank(f.FirstName) {
		errs.add("firstName", "first name is required")
	}
	if blank(f.LastName) {
		errs.add("lastName", "last name is required")
	}
	if !blank(f.Email) && !validEmail(f.Email) {
		errs.add("email", "must be a valid email address")
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	contact := docs.Contact{
		FirstName:       f.FirstName,
		LastName:        f.LastName,
		JobTitle:        f.JobTitle,
		Location:        f.Location,
		Phone:           f.Phone,
		Email:           f.Email,
		ApplicationLink: f.ApplicationLink,
	}
	return state.Patch{Contact: &contact}, nil
}

// ExperiencesForm replaces the whole work-experience section. All-blank
// entries are allowed here (the user may have just added a row); they are
// pruned at persistence time, not at merge time.
type ExperiencesForm struct {
	Entries []docs.Experience `json:"entries"`
}

func (f ExperiencesForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	for i, e := range f.Entries {
		if e == (docs.Experience{}) {
			continue
		}
		field := indexed("experiences", i)
		if blank(e.Position) {
			errs.add(field+".position", "position is required")
		}
		if blank(e.Company) {
			errs.add(field+".company", "company is required")
		}
		checkRange(errs, field, e.Dates.Start, e.Dates.End)
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	entries := f.Entries
	return state.Patch{Experiences: &entries}, nil
}

// EducationsForm replaces the whole education section.
type EducationsForm struct {
	Entries []docs.Education `json:"entries"`
}

func (f EducationsForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	for i, e := range f.Entries {
		if e == (docs.Education{}) {
			continue
		}
		field := indexed("educations", i)
		if blank(e.Degree) {
			errs.add(field+".degree", "degree is required")
		}
		if blank(e.School) {
			errs.add(field+".school", "school is required")
		}
		checkRange(errs, field, e.Dates.Start, e.Dates.End)
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	entries := f.Entries
	return state.Patch{Educations: &entries}, nil
}

// AchievementsForm replaces the whole achievements section. Achievement
// dates must already have happened.
type AchievementsForm struct {
	Entries []docs.Achievement `json:"entries"`

	// Now is injectable for tests; zero means time.Now.
	Now time.Time `json:"-"`
}

func (f AchievementsForm) Validate() (state.Patch, FieldErrors) {
	now := f.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	errs := FieldErrors{}
	for i, a := range f.Entries {
		if blank(a.Name) && blank(a.Description) && a.AchievedAt == nil {
			continue
		}
		field := indexed("achievements", i)
		if blank(a.Name) {
			errs.add(field+".name", "name is required")
		}
		if a.AchievedAt != nil && !blank(*a.AchievedAt) {
			d, ok := parseDate(*a.AchievedAt)
			if !ok {
				errs.add(field+".achievedAt", "must be a date in YYYY-MM-DD form")
			} else if d.After(now) {
				errs.add(field+".achievedAt", "must be in the past")
			}
		}
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	entries := f.Entries
	return state.Patch{Achievements: &entries}, nil
}

// RecipientsForm replaces the cover letter's recipient section.
type RecipientsForm struct {
	Entries []docs.Recipient `json:"entries"`
}

func (f RecipientsForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	for i, r := range f.Entries {
		if r == (docs.Recipient{}) {
			continue
		}
		if blank(r.Name) {
			errs.add(indexed("recipients", i)+".name", "name is required")
		}
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	entries := f.Entries
	return state.Patch{Recipients: &entries}, nil
}

// JobDescriptionsForm replaces the cover letter's job-description section.
type JobDescriptionsForm struct {
	Entries []docs.JobDescriptionEntry `json:"entries"`
}

func (f JobDescriptionsForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	for i, j := range f.Entries {
		if j == (docs.JobDescriptionEntry{}) {
			continue
		}
		if blank(j.Title) {
			errs.add(indexed("jobDescriptions", i)+".title", "title is required")
		}
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	entries := f.Entries
	return state.Patch{JobDescriptions: &entries}, nil
}

// ProseForm edits the cover letter's free-text paragraphs. The opening has a
// minimum length; body and closing are free.
type ProseForm struct {
	Opening    string `json:"opening"`
	LetterBody string `json:"letterBody"`
	Closing    string `json:"closing"`
}

func (f ProseForm) Validate() (state.Patch, FieldErrors) {
	errs := FieldErrors{}
	if !blank(f.Opening) && len(f.Opening) < OpeningMinLength {
		errs.add("opening", "opening paragraph is too short")
	}
	if len(errs) > 0 {
		return state.Patch{}, errs
	}
	return state.Patch{Opening: &f.Opening, LetterBody: &f.LetterBody, Closing: &f.Closing}, nil
}
