package types

import "fmt"

// Resume is the resume aggregate in JSON Resume shape. The renderer consumes
// it read-only; persistence and the "at least one of work, education or
// skills" rule belong to the callers.
type Resume struct {
	Basics       Basics        `json:"basics"`
	Work         []Work        `json:"work,omitempty"`
	Volunteer    []Volunteer   `json:"volunteer,omitempty"`
	Education    []Education   `json:"education,omitempty"`
	Awards       []Award       `json:"awards,omitempty"`
	Certificates []Certificate `json:"certificates,omitempty"`
	Publications []Publication `json:"publications,omitempty"`
	Skills       []Skill       `json:"skills,omitempty"`
	Languages    []Language    `json:"languages,omitempty"`
	Interests    []Interest    `json:"interests,omitempty"`
	References   []Reference   `json:"references,omitempty"`
	Projects     []Project     `json:"projects,omitempty"`
}

// Basics holds the contact header of a resume
type Basics struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Image    string    `json:"image,omitempty"`
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	URL      string    `json:"url,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Location *Location `json:"location,omitempty"`
	Profiles []Profile `json:"profiles,omitempty"`
}

// Location is a postal location
type Location struct {
	Address     string `json:"address,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Region      string `json:"region,omitempty"`
}

// Profile is a social or professional network profile
type Profile struct {
	Network  string `json:"network"`
	Username string `json:"username,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Work is a single position held
type Work struct {
	Name       string   `json:"name"`
	Position   string   `json:"position,omitempty"`
	Location   string   `json:"location,omitempty"`
	URL        string   `json:"url,omitempty"`
	StartDate  string   `json:"startDate,omitempty"`
	EndDate    string   `json:"endDate,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Volunteer is an unpaid position
type Volunteer struct {
	Organization string   `json:"organization"`
	Position     string   `json:"position,omitempty"`
	URL          string   `json:"url,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
}

// Education is a single course of study
type Education struct {
	Institution string   `json:"institution"`
	URL         string   `json:"url,omitempty"`
	Area        string   `json:"area,omitempty"`
	StudyType   string   `json:"studyType,omitempty"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	Score       string   `json:"score,omitempty"`
	Courses     []string `json:"courses,omitempty"`
}

// Award is an award or honour
type Award struct {
	Title   string `json:"title"`
	Date    string `json:"date,omitempty"`
	Awarder string `json:"awarder,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Certificate is a professional certification
type Certificate struct {
	Name   string `json:"name"`
	Date   string `json:"date,omitempty"`
	Issuer string `json:"issuer,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Publication is a published work
type Publication struct {
	Name        string `json:"name"`
	Publisher   string `json:"publisher,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	URL         string `json:"url,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Skill is a named skill with optional keywords
type Skill struct {
	Name     string   `json:"name"`
	Level    string   `json:"level,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Language is a spoken language
type Language struct {
	Language string `json:"language"`
	Fluency  string `json:"fluency,omitempty"`
}

// Interest is a personal interest
type Interest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// Reference is a professional reference
type Reference struct {
	Name      string `json:"name"`
	Reference string `json:"reference,omitempty"`
}

// Project is a project with optional highlights
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	URL         string   `json:"url,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Entity      string   `json:"entity,omitempty"`
	Type        string   `json:"type,omitempty"`
}

// HasContent reports whether the resume has at least one of work, education or skills.
func (r *Resume) HasContent() bool {
	return r != nil && (len(r.Work) > 0 || len(r.Education) > 0 || len(r.Skills) > 0)
}

// TextField is a single free-text leaf of a resume together with its JSON path
type TextField struct {
	Path  string
	Value string
}

// TextFields returns every non-empty free-text leaf of the resume in document
// order. Paths use JSON field names, e.g. "work[0].highlights[2]".
func (r *Resume) TextFields() []TextField {
	if r == nil {
		return nil
	}

	var fields []TextField
	add := func(path, value string) {
		if value != "" {
			fields = append(fields, TextField{Path: path, Value: value})
		}
	}
	addAll := func(path string, values []string) {
		for i, v := range values {
			add(fmt.Sprintf("%s[%d]", path, i), v)
		}
	}

	b := r.Basics
	add("basics.name", b.Name)
	add("basics.label", b.Label)
	add("basics.image", b.Image)
	add("basics.email", b.Email)
	add("basics.phone", b.Phone)
	add("basics.url", b.URL)
	add("basics.summary", b.Summary)
	if b.Location != nil {
		add("basics.location.address", b.Location.Address)
		add("basics.location.postalCode", b.Location.PostalCode)
		add("basics.location.city", b.Location.City)
		add("basics.location.countryCode", b.Location.CountryCode)
		add("basics.location.region", b.Location.Region)
	}
	for i, p := range b.Profiles {
		prefix := fmt.Sprintf("basics.profiles[%d]", i)
		add(prefix+".network", p.Network)
		add(prefix+".username", p.Username)
		add(prefix+".url", p.URL)
	}

	for i, w := range r.Work {
		prefix := fmt.Sprintf("work[%d]", i)
		add(prefix+".name", w.Name)
		add(prefix+".position", w.Position)
		add(prefix+".location", w.Location)
		add(prefix+".url", w.URL)
		add(prefix+".startDate", w.StartDate)
		add(prefix+".endDate", w.EndDate)
		add(prefix+".summary", w.Summary)
		addAll(prefix+".highlights", w.Highlights)
	}
	for i, v := range r.Volunteer {
		prefix := fmt.Sprintf("volunteer[%d]", i)
		add(prefix+".organization", v.Organization)
		add(prefix+".position", v.Position)
		add(prefix+".url", v.URL)
		add(prefix+".startDate", v.StartDate)
		add(prefix+".endDate", v.EndDate)
		add(prefix+".summary", v.Summary)
		addAll(prefix+".highlights", v.Highlights)
	}
	for i, e := range r.Education {
		prefix := fmt.Sprintf("education[%d]", i)
		add(prefix+".institution", e.Institution)
		add(prefix+".url", e.URL)
		add(prefix+".area", e.Area)
		add(prefix+".studyType", e.StudyType)
		add(prefix+".startDate", e.StartDate)
		add(prefix+".endDate", e.EndDate)
		add(prefix+".score", e.Score)
		addAll(prefix+".courses", e.Courses)
	}
	for i, a := range r.Awards {
		prefix := fmt.Sprintf("awards[%d]", i)
		add(prefix+".title", a.Title)
		add(prefix+".date", a.Date)
		add(prefix+".awarder", a.Awarder)
		add(prefix+".summary", a.Summary)
	}
	for i, c := range r.Certificates {
		prefix := fmt.Sprintf("certificates[%d]", i)
		add(prefix+".name", c.Name)
		add(prefix+".date", c.Date)
		add(prefix+".issuer", c.Issuer)
		add(prefix+".url", c.URL)
	}
	for i, p := range r.Publications {
		prefix := fmt.Sprintf("publications[%d]", i)
		add(prefix+".name", p.Name)
		add(prefix+".publisher", p.Publisher)
		add(prefix+".releaseDate", p.ReleaseDate)
		add(prefix+".url", p.URL)
		add(prefix+".summary", p.Summary)
	}
	for i, s := range r.Skills {
		prefix := fmt.Sprintf("skills[%d]", i)
		add(prefix+".name", s.Name)
		add(prefix+".level", s.Level)
		addAll(prefix+".keywords", s.Keywords)
	}
	for i, l := range r.Languages {
		prefix := fmt.Sprintf("languages[%d]", i)
		add(prefix+".language", l.Language)
		add(prefix+".fluency", l.Fluency)
	}
	for i, in := range r.Interests {
		prefix := fmt.Sprintf("interests[%d]", i)
		add(prefix+".name", in.Name)
		addAll(prefix+".keywords", in.Keywords)
	}
	for i, ref := range r.References {
		prefix := fmt.Sprintf("references[%d]", i)
		add(prefix+".name", ref.Name)
		add(prefix+".reference", ref.Reference)
	}
	for i, p := range r.Projects {
		prefix := fmt.Sprintf("projects[%d]", i)
		add(prefix+".name", p.Name)
		add(prefix+".description", p.Description)
		addAll(prefix+".highlights", p.Highlights)
		addAll(prefix+".keywords", p.Keywords)
		add(prefix+".startDate", p.StartDate)
		add(prefix+".endDate", p.EndDate)
		add(prefix+".url", p.URL)
		addAll(prefix+".roles", p.Roles)
		add(prefix+".entity", p.Entity)
		add(prefix+".type", p.Type)
	}

	return fields
}
