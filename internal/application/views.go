package application

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"slices"
	"strconv"

	"github.com/gabrielmiguelok/applyform/internal/lookup"
	"github.com/gabrielmiguelok/applyform/pkg/core"
	"github.com/gabrielmiguelok/applyform/pkg/forms"
	"github.com/gabrielmiguelok/applyform/pkg/pool"
	"github.com/gabrielmiguelok/applyform/pkg/uploads"
	"github.com/gabrielmiguelok/applyform/pkg/wizard"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// views maps each step view to the template rendering it.
var views = map[wizard.ViewID]string{
	ViewPersonal: "step-personal",
	ViewAddress:  "step-address",
	ViewWork:     "step-work",
	ViewSocial:   "step-social",
	ViewResume:   "step-resume",
}

// TimeZones are offered in the time zone picker, besides the current value.
var TimeZones = []string{
	"UTC",
	"Africa/Lagos", "Africa/Cairo", "Africa/Johannesburg", "Africa/Nairobi",
	"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles",
	"America/Sao_Paulo", "America/Mexico_City", "America/Toronto",
	"Asia/Dubai", "Asia/Kolkata", "Asia/Shanghai", "Asia/Singapore", "Asia/Tokyo",
	"Australia/Sydney",
	"Europe/Berlin", "Europe/London", "Europe/Madrid", "Europe/Paris", "Europe/Warsaw",
}

type stepLink struct {
	Index   int
	Number  int
	Title   string
	Current bool
	Done    bool
	Locked  bool
}

type fieldView struct {
	ID          string
	Name        string
	Label       string
	Type        string
	Placeholder string
	Help        string
	Value       string
	Error       string
	Event       string
	Index       int
	InJob       bool
	Options     []forms.Option
}

type jobView struct {
	Index       int
	Number      int
	Title       fieldView
	Company     fieldView
	From        fieldView
	To          fieldView
	Description fieldView
}

type resumeView struct {
	UUID  string
	Name  string
	Size  string
	Type  string
	Error string
}

// page is the template data of one render.
type page struct {
	SessionID string
	Connected bool
	Submitted bool
	Direction string

	Step        wizard.Step
	Steps       []stepLink
	Index       int
	Number      int
	Count       int
	HasPrevious bool
	IsFinal     bool
	StepHTML    template.HTML

	Data      *FormData
	Notice    string
	Lookups   bool
	Profile   *lookup.Profile
	Portfolio *lookup.Metadata

	UploadURL  string
	Accept     string
	MaxFiles   int
	ResumeFull bool

	schema *forms.Schema
	errors forms.Errors
}

func (w *Wizard) page() *page {
	state := w.ctrl.State()
	reg := w.ctrl.Registry()

	p := &page{
		SessionID:   w.sessionID,
		Connected:   w.sessionID != "",
		Submitted:   w.ctrl.Submitted(),
		Direction:   state.Direction().String(),
		Step:        w.ctrl.Step(),
		Index:       state.Current(),
		Number:      state.Current() + 1,
		Count:       state.Count(),
		HasPrevious: state.HasPrevious(),
		IsFinal:     state.IsFinal(),
		Data:        w.data,
		Notice:      w.notice,
		Lookups:     w.cfg.Lookups != nil,
		Profile:     w.profile,
		Portfolio:   w.portfolio,
		Accept:      w.cfg.Uploads.Accept(),
		MaxFiles:    w.data.Resume.Max(),
		ResumeFull:  w.data.Resume.Full(),
		schema:      w.cfg.Schema,
		errors:      w.errors,
	}
	if p.Connected {
		p.UploadURL = w.cfg.UploadPath + w.sessionID
	}
	for i, s := range reg.Steps() {
		p.Steps = append(p.Steps, stepLink{
			Index:   i,
			Number:  i + 1,
			Title:   s.Title,
			Current: i == p.Index,
			Done:    i < p.Index,
			Locked:  i > p.Index+1,
		})
	}
	return p
}

// Field builds the view of a top-level field.
func (p *page) Field(name string) fieldView {
	v := p.field(p.schema, name, name)
	v.Event = "update"
	v.Value = p.textValue(name)
	if f, ok := p.schema.Field(name); ok && f.Type == forms.FieldSelect && name == FieldTimeZone {
		v.Options = zoneOptions(v.Value)
	}
	return v
}

// Jobs builds the views of the job rows.
func (p *page) Jobs() []jobView {
	items := jobItems(p.schema)
	out := make([]jobView, len(p.Data.Jobs))
	for i, j := range p.Data.Jobs {
		jf := func(name, value string) fieldView {
			v := p.field(items, name, JobPath(i, name))
			v.ID = fmt.Sprintf("job-%d-%s", i, name)
			v.Event = "job_update"
			v.Index = i
			v.InJob = true
			v.Value = value
			return v
		}
		out[i] = jobView{
			Index:       i,
			Number:      i + 1,
			Title:       jf(JobTitle, j.Title),
			Company:     jf(JobCompany, j.Company),
			From:        jf(JobFrom, j.From.String()),
			To:          jf(JobTo, j.To.String()),
			Description: jf(JobDescription, j.Description),
		}
	}
	return out
}

// Resume lists the attached files.
func (p *page) Resume() []resumeView {
	entries := p.Data.Resume.Entries()
	out := make([]resumeView, len(entries))
	for i, e := range entries {
		out[i] = resumeView{
			UUID:  e.UUID,
			Name:  e.FileName,
			Size:  humanSize(e.Size),
			Type:  e.ContentType,
			Error: p.errors.First(FieldResume + "." + strconv.Itoa(i)),
		}
	}
	return out
}

// Error returns the first message at path.
func (p *page) Error(path string) string {
	return p.errors.First(path)
}

func (p *page) field(schema *forms.Schema, name, path string) fieldView {
	v := fieldView{ID: "field-" + name, Name: name, Label: name, Type: string(forms.FieldText), Error: p.errors.First(path)}
	if schema == nil {
		return v
	}
	if f, ok := schema.Field(name); ok {
		v.Label = f.Label
		v.Type = string(f.Type)
		v.Placeholder = f.Placeholder
		v.Help = f.Help
		v.Options = f.Options
	}
	return v
}

func (p *page) textValue(name string) string {
	if s, ok := p.Data.Get(name).(string); ok {
		return s
	}
	return ""
}

func jobItems(schema *forms.Schema) *forms.Schema {
	if f, ok := schema.Field(FieldJobs); ok {
		return f.Items
	}
	return nil
}

func zoneOptions(current string) []forms.Option {
	zones := TimeZones
	if current != "" && !slices.Contains(zones, current) {
		zones = append([]string{current}, zones...)
	}
	opts := make([]forms.Option, 0, len(zones)+1)
	opts = append(opts, forms.Option{Value: "", Label: "Select a time zone"})
	for _, z := range zones {
		opts = append(opts, forms.Option{Value: z, Label: z})
	}
	return opts
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// render writes the component markup.
func (w *Wizard) render(out io.Writer) error {
	p := w.page()
	if !p.Submitted {
		name, ok := views[p.Step.View]
		if !ok {
			return fmt.Errorf("no view for step %s (%s)", p.Step.ID, p.Step.View)
		}
		buf := pool.GetBuffer()
		defer pool.PutBuffer(buf)
		if err := templates.ExecuteTemplate(buf, name, p); err != nil {
			return fmt.Errorf("render step %s: %w", p.Step.ID, err)
		}
		p.StepHTML = template.HTML(buf.String())
	}
	return templates.ExecuteTemplate(out, "wizard", p)
}

// DocumentOptions configures the page around the live component.
type DocumentOptions struct {
	Title     string
	ScriptURL string
}

// Document wraps the component's first render into a full HTML page that
// loads the live client. The result is usable as a router layout.
func Document(opts DocumentOptions) func(core.Renderer) core.Renderer {
	return func(content core.Renderer) core.Renderer {
		return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
			buf := pool.GetBuffer()
			defer pool.PutBuffer(buf)
			if err := content.Render(ctx, buf); err != nil {
				return err
			}
			return templates.ExecuteTemplate(w, "document", struct {
				DocumentOptions
				Content template.HTML
			}{opts, template.HTML(buf.String())})
		})
	}
}

// uploadsConfig returns the upload limits matching the resume rules.
func uploadsConfig(c uploads.Config) uploads.Config {
	if len(c.Extensions) == 0 {
		c.Extensions = ValidResumeExtensions
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = MaxFiles
	}
	return c
}
