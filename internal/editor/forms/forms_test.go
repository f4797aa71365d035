package forms

import (
	"testing"
	"time"

	"cvbuilder-backend/internal/docs"
)

func strptr(s string) *string { return &s }

func TestDetailsFormRequiresTitle(t *testing.T) {
	_, errs := DetailsForm{Title: "   "}.Validate()
	if errs == nil {
		t.Fatal("expected field errors for a blank title")
	}
	if _, ok := errs["title"]; !ok {
		t.Fatalf("expected a title error, got %v", errs)
	}
}

func TestDetailsFormValidProducesPatch(t *testing.T) {
	p, errs := DetailsForm{Title: "Engineer CV", Description: "For big tech"}.Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Title == nil || *p.Title != "Engineer CV" {
		t.Fatalf("patch missing title: %+v", p)
	}
	if p.Description == nil || *p.Description != "For big tech" {
		t.Fatalf("patch missing description: %+v", p)
	}
}

func TestStylingFormValidation(t *testing.T) {
	cases := []struct {
		name  string
		form  StylingForm
		field string
	}{
		{"bad color", StylingForm{ThemeColor: "red", BorderStyle: "circle", TemplateID: 1}, "themeColor"},
		{"short hex", StylingForm{ThemeColor: "#fff", BorderStyle: "circle", TemplateID: 1}, "themeColor"},
		{"bad border", StylingForm{ThemeColor: "#112233", BorderStyle: "dotted", TemplateID: 1}, "borderStyle"},
		{"bad template", StylingForm{ThemeColor: "#112233", BorderStyle: "square", TemplateID: 0}, "templateId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := tc.form.Validate()
			if errs == nil {
				t.Fatal("expected field errors")
			}
			if _, ok := errs[tc.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tc.field, errs)
			}
		})
	}

	p, errs := StylingForm{ThemeColor: "#A1B2C3", BorderStyle: "rounded", TemplateID: 2, FontFamily: "Inter"}.Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Styling == nil || p.Styling.FontFamily != "Inter" {
		t.Fatalf("styling patch incomplete: %+v", p.Styling)
	}
}

func TestContactFormValidation(t *testing.T) {
	_, errs := ContactForm{FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email"}.Validate()
	if errs == nil {
		t.Fatal("expected field errors for a malformed email")
	}
	if _, ok := errs["email"]; !ok {
		t.Fatalf("expected an email error, got %v", errs)
	}

	p, errs := ContactForm{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}.Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Contact == nil || p.Contact.Email != "ada@example.com" {
		t.Fatalf("contact patch incomplete: %+v", p.Contact)
	}
}

func TestContactFormEmailIsOptional(t *testing.T) {
	_, errs := ContactForm{FirstName: "Ada", LastName: "Lovelace"}.Validate()
	if errs != nil {
		t.Fatalf("blank email must be acceptable, got %v", errs)
	}
}

func TestExperiencesFormIndexesErrors(t *testing.T) {
	form := ExperiencesForm{Entries: []docs.Experience{
		{Position: "SRE", Company: "Acme"},
		{Position: "", Company: "Initech"},
	}}
	_, errs := form.Validate()
	if errs == nil {
		t.Fatal("expected field errors")
	}
	if _, ok := errs["experiences[1].position"]; !ok {
		t.Fatalf("expected an indexed position error, got %v", errs)
	}
	if _, ok := errs["experiences[0].position"]; ok {
		t.Fatalf("valid entry flagged: %v", errs)
	}
}

func TestExperiencesFormAllowsBlankRow(t *testing.T) {
	form := ExperiencesForm{Entries: []docs.Experience{
		{Position: "SRE", Company: "Acme"},
		{},
	}}
	p, errs := form.Validate()
	if errs != nil {
		t.Fatalf("a freshly added blank row must validate, got %v", errs)
	}
	if p.Experiences == nil || len(*p.Experiences) != 2 {
		t.Fatalf("patch must carry the section verbatim: %+v", p.Experiences)
	}
}

func TestExperiencesFormRejectsInvertedDates(t *testing.T) {
	form := ExperiencesForm{Entries: []docs.Experience{{
		Position: "SRE",
		Company:  "Acme",
		Dates:    docs.DateRange{Start: strptr("2024-05-01"), End: strptr("2024-01-01")},
	}}}
	_, errs := form.Validate()
	if errs == nil {
		t.Fatal("expected field errors")
	}
	if _, ok := errs["experiences[0].dates.end"]; !ok {
		t.Fatalf("expected an end-date error, got %v", errs)
	}
}

func TestExperiencesFormAcceptsOngoingEntry(t *testing.T) {
	form := ExperiencesForm{Entries: []docs.Experience{{
		Position: "SRE",
		Company:  "Acme",
		Dates:    docs.DateRange{Start: strptr("2024-05-01")},
	}}}
	if _, errs := form.Validate(); errs != nil {
		t.Fatalf("ongoing entry must validate, got %v", errs)
	}
}

func TestEducationsFormRequiresDegreeAndSchool(t *testing.T) {
	form := EducationsForm{Entries: []docs.Education{{Description: "self-taught"}}}
	_, errs := form.Validate()
	if errs == nil {
		t.Fatal("expected field errors")
	}
	for _, field := range []string{"educations[0].degree", "educations[0].school"} {
		if _, ok := errs[field]; !ok {
			t.Fatalf("expected error on %q, got %v", field, errs)
		}
	}
}

func TestAchievementsFormRejectsFutureDates(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	form := AchievementsForm{
		Now: now,
		Entries: []docs.Achievement{{
			Name:       "Kubestronaut",
			AchievedAt: strptr("2027-01-01"),
		}},
	}
	_, errs := form.Validate()
	if errs == nil {
		t.Fatal("expected field errors")
	}
	if _, ok := errs["achievements[0].achievedAt"]; !ok {
		t.Fatalf("expected a date error, got %v", errs)
	}

	form.Entries[0].AchievedAt = strptr("2025-01-01")
	if _, errs := form.Validate(); errs != nil {
		t.Fatalf("past date must validate, got %v", errs)
	}
}

func TestRecipientsFormRequiresName(t *testing.T) {
	form := RecipientsForm{Entries: []docs.Recipient{{Company: "Acme"}}}
	_, errs := form.Validate()
	if errs == nil {
		t.Fatal("expected field errors")
	}
	if _, ok := errs["recipients[0].name"]; !ok {
		t.Fatalf("expected a name error, got %v", errs)
	}
}

func TestProseFormOpeningMinimum(t *testing.T) {
	_, errs := ProseForm{Opening: "Too short."}.Validate()
	if errs == nil {
		t.Fatal("expected field errors for a short opening")
	}

	p, errs := ProseForm{Opening: "I am writing to express my interest in the role."}.Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Opening == nil {
		t.Fatalf("patch missing opening: %+v", p)
	}

	// a blank opening is fine; the minimum only binds once there is text
	if _, errs := (ProseForm{}).Validate(); errs != nil {
		t.Fatalf("blank prose must validate, got %v", errs)
	}
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	errs := FieldErrors{"b": "second", "a": "first"}
	if got := errs.Error(); got != "a: first; b: second" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMoveRelocatesWithoutMutatingInput(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	out, err := Move(in, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := []string{out[0], out[1], out[2], out[3]}; got[0] != "d" || got[1] != "a" || got[2] != "b" || got[3] != "c" {
		t.Fatalf("unexpected order %v", out)
	}
	if in[0] != "a" || in[3] != "d" {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestMoveForward(t *testing.T) {
	out, err := Move([]string{"a", "b", "c", "d"}, 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b", "c", "a", "d"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", out, want)
		}
	}
}

func TestMoveRejectsOutOfRange(t *testing.T) {
	if _, err := Move([]string{"a"}, 1, 0); err == nil {
		t.Fatal("expected an error for an out-of-range from index")
	}
	if _, err := Move([]string{"a"}, 0, 2); err == nil {
		t.Fatal("expected an error for an out-of-range to index")
	}
}

func TestMoveSamePositionIsIdentity(t *testing.T) {
	out, err := Move([]string{"a", "b"}, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != "a" || out[1] != "b" {
		t.Fatalf("unexpected order %v", out)
	}
}
