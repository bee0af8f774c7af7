package rendering

import (
	"strings"

	"github.com/jonathan/resume-renderer/internal/types"
)

// RenderData is the value bound to a template's entry point for one render
type RenderData struct {
	Resume      *ResumeView
	Messages    map[string]string
	Locale      string
	LastUpdated string
	Params      map[string]any
}

// ResumeView is the render-friendly, fully escaped projection of a resume.
// Every string in it is safe to place in LaTeX source as-is.
type ResumeView struct {
	Name     string
	Label    string
	Email    string
	Phone    string
	URL      string
	Summary  string
	Location string
	Profiles []ProfileView

	// ContactItems lists the non-empty contact details in display order
	ContactItems []string

	Work         []EntryView
	Volunteer    []EntryView
	Education    []EducationView
	Awards       []AwardView
	Certificates []CertificateView
	Publications []PublicationView
	Skills       []SkillView
	Languages    []LanguageView
	Interests    []InterestView
	References   []ReferenceView
	Projects     []ProjectView
}

type ProfileView struct {
	Network  string
	Username string
	URL      string
}

// EntryView is a dated position, paid or volunteer
type EntryView struct {
	Title        string
	Organization string
	Location     string
	URL          string
	Dates        string
	Summary      string
	Highlights   []string
}

type EducationView struct {
	Institution string
	Area        string
	StudyType   string
	Degree      string
	Score       string
	URL         string
	Dates       string
	Courses     []string
}

type AwardView struct {
	Title   string
	Awarder string
	Date    string
	Summary string
}

type CertificateView struct {
	Name   string
	Issuer string
	Date   string
	URL    string
}

type PublicationView struct {
	Name      string
	Publisher string
	Date      string
	URL       string
	Summary   string
}

type SkillView struct {
	Name     string
	Level    string
	Keywords []string
}

type LanguageView struct {
	Language string
	Fluency  string
}

type InterestView struct {
	Name     string
	Keywords []string
}

type ReferenceView struct {
	Name      string
	Reference string
}

type ProjectView struct {
	Name        string
	Description string
	Entity      string
	URL         string
	Dates       string
	Roles       []string
	Keywords    []string
	Highlights  []string
}

// mapResume projects r into a ResumeView, escaping every free-text leaf
// exactly once and formatting dates with the bundle's locale.
func mapResume(r *types.Resume, b *Bundle) *ResumeView {
	e := EscapeLaTeX
	basics := r.Basics

	v := &ResumeView{
		Name:     e(basics.Name),
		Label:    e(basics.Label),
		Email:    e(basics.Email),
		Phone:    e(basics.Phone),
		URL:      e(basics.URL),
		Summary:  e(basics.Summary),
		Location: e(formatLocation(basics.Location)),
	}

	for _, p := range basics.Profiles {
		v.Profiles = append(v.Profiles, ProfileView{Network: e(p.Network), Username: e(p.Username), URL: e(p.URL)})
	}
	v.ContactItems = nonEmpty(v.Email, v.Phone, v.URL, v.Location)

	for _, w := range r.Work {
		v.Work = append(v.Work, EntryView{
			Title:        e(w.Position),
			Organization: e(w.Name),
			Location:     e(w.Location),
			URL:          e(w.URL),
			Dates:        formatRange(w.StartDate, w.EndDate, b),
			Summary:      e(w.Summary),
			Highlights:   EscapeAll(w.Highlights),
		})
	}
	for _, vol := range r.Volunteer {
		v.Volunteer = append(v.Volunteer, EntryView{
			Title:        e(vol.Position),
			Organization: e(vol.Organization),
			URL:          e(vol.URL),
			Dates:        formatRange(vol.StartDate, vol.EndDate, b),
			Summary:      e(vol.Summary),
			Highlights:   EscapeAll(vol.Highlights),
		})
	}
	for _, ed := range r.Education {
		v.Education = append(v.Education, EducationView{
			Institution: e(ed.Institution),
			Area:        e(ed.Area),
			StudyType:   e(ed.StudyType),
			Degree:      e(strings.Join(nonEmpty(ed.StudyType, ed.Area), ", ")),
			Score:       e(ed.Score),
			URL:         e(ed.URL),
			Dates:       formatRange(ed.StartDate, ed.EndDate, b),
			Courses:     EscapeAll(ed.Courses),
		})
	}
	for _, a := range r.Awards {
		v.Awards = append(v.Awards, AwardView{Title: e(a.Title), Awarder: e(a.Awarder), Date: formatDate(a.Date, b), Summary: e(a.Summary)})
	}
	for _, c := range r.Certificates {
		v.Certificates = append(v.Certificates, CertificateView{Name: e(c.Name), Issuer: e(c.Issuer), Date: formatDate(c.Date, b), URL: e(c.URL)})
	}
	for _, p := range r.Publications {
		v.Publications = append(v.Publications, PublicationView{
			Name:      e(p.Name),
			Publisher: e(p.Publisher),
			Date:      formatDate(p.ReleaseDate, b),
			URL:       e(p.URL),
			Summary:   e(p.Summary),
		})
	}
	for _, s := range r.Skills {
		v.Skills = append(v.Skills, SkillView{Name: e(s.Name), Level: e(s.Level), Keywords: EscapeAll(s.Keywords)})
	}
	for _, l := range r.Languages {
		v.Languages = append(v.Languages, LanguageView{Language: e(l.Language), Fluency: e(l.Fluency)})
	}
	for _, in := range r.Interests {
		v.Interests = append(v.Interests, InterestView{Name: e(in.Name), Keywords: EscapeAll(in.Keywords)})
	}
	for _, ref := range r.References {
		v.References = append(v.References, ReferenceView{Name: e(ref.Name), Reference: e(ref.Reference)})
	}
	for _, p := range r.Projects {
		v.Projects = append(v.Projects, ProjectView{
			Name:        e(p.Name),
			Description: e(p.Description),
			Entity:      e(p.Entity),
			URL:         e(p.URL),
			Dates:       formatRange(p.StartDate, p.EndDate, b),
			Roles:       EscapeAll(p.Roles),
			Keywords:    EscapeAll(p.Keywords),
			Highlights:  EscapeAll(p.Highlights),
		})
	}

	return v
}

func formatLocation(loc *types.Location) string {
	if loc == nil {
		return ""
	}
	return strings.Join(nonEmpty(loc.City, loc.Region, loc.CountryCode), ", ")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
