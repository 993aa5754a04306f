package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/gabrielmiguelok/applyform/internal/lookup"
	"github.com/gabrielmiguelok/applyform/pkg/core"
	"github.com/gabrielmiguelok/applyform/pkg/forms"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/protocol"
	"github.com/gabrielmiguelok/applyform/pkg/uploads"
	"github.com/gabrielmiguelok/applyform/pkg/wizard"
)

// ErrUnknownEvent is returned for events the wizard does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Notices shown above the current step.
const (
	NoticeFixErrors    = "Please fix the highlighted fields before submitting."
	NoticeSubmitFailed = "We could not submit your application. Please try again."
)

// ResumeUploaded is delivered to a session when files arrive through the
// upload endpoint.
type ResumeUploaded struct {
	Entries []uploads.Entry
}

// Lookups autofills parts of the form. Every method returns nil when
// nothing useful was found; failures never block the wizard.
type Lookups interface {
	GitHubProfile(ctx context.Context, profileURL string) *lookup.Profile
	PageMetadata(ctx context.Context, pageURL string) *lookup.Metadata
	ReverseGeocode(ctx context.Context, lat, lon float64) *lookup.Address
}

// Config configures the wizard component.
type Config struct {
	Schema    *forms.Schema
	Steps     *wizard.Registry
	Defaults  Defaults
	Submitter wizard.Submitter

	// Lookups enables the autofill buttons when set.
	Lookups Lookups

	Uploads uploads.Config

	// UploadPath is the URL prefix of the upload endpoint; the session id
	// is appended to it.
	UploadPath string

	Logger logging.Logger
}

func (c Config) withDefaults() Config {
	if c.Schema == nil {
		c.Schema = NewSchema(SchemaOptions{})
	}
	if c.Steps == nil {
		c.Steps = Steps()
	}
	c.Uploads = uploadsConfig(c.Uploads)
	if c.Defaults.MaxResumes <= 0 {
		c.Defaults.MaxResumes = c.Uploads.MaxEntries
	}
	if c.UploadPath == "" {
		c.UploadPath = "/uploads/"
	}
	if c.Logger == nil {
		c.Logger = logging.NopLogger{}
	}
	return c
}

// Wizard is the live job application form. One instance serves one session.
type Wizard struct {
	core.BaseComponent

	cfg    Config
	logger logging.Logger

	sessionID string
	data      *FormData
	ctrl      *wizard.Controller
	errors    forms.Errors
	notice    string
	profile   *lookup.Profile
	portfolio *lookup.Metadata
}

// New returns a wizard positioned on the first step with an empty form.
func New(cfg Config) *Wizard {
	cfg = cfg.withDefaults()
	w := &Wizard{cfg: cfg, logger: cfg.Logger}
	w.reset()
	return w
}

// Factory returns a core.Factory creating one wizard per session.
func Factory(cfg Config) core.Factory {
	cfg = cfg.withDefaults()
	return func() core.Component {
		return New(cfg)
	}
}

func (w *Wizard) Name() string {
	return "application"
}

// Data returns the form being edited.
func (w *Wizard) Data() *FormData {
	return w.data
}

// Errors returns the messages currently displayed.
func (w *Wizard) Errors() forms.Errors {
	return w.errors
}

func (w *Wizard) Mount(ctx context.Context, params core.Params, session core.Session) error {
	w.sessionID = session.GetString(core.SessionID)
	if w.sessionID != "" {
		w.logger = w.cfg.Logger.With(logging.String("session", w.sessionID))
		w.reset()
	}
	return nil
}

func (w *Wizard) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, out io.Writer) error {
		return w.render(out)
	})
}

func (w *Wizard) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "update":
		return w.update(payload)
	case "job_update":
		return w.updateJob(payload)
	case "job_add":
		w.data.AddJob()
		delete(w.errors, FieldJobs)
	case "job_remove":
		return w.removeJob(payload)
	case "resume_remove":
		if err := w.data.Resume.Remove(protocol.PayloadString(payload, "id")); err != nil {
			return err
		}
		w.revalidate(FieldResume)
	case "next":
		fields := w.ctrl.Step().Fields
		errs, err := w.ctrl.Next(ctx)
		return w.gated(fields, errs, err)
	case "goto":
		target, err := protocol.PayloadInt(payload, "index")
		if err != nil {
			return err
		}
		fields, gated := w.ctrl.Step().Fields, target == w.ctrl.State().Current()+1
		errs, err := w.ctrl.Goto(ctx, target)
		if !gated {
			return err
		}
		return w.gated(fields, errs, err)
	case "back":
		if w.ctrl.Back() {
			w.notice = ""
		}
	case "submit":
		return w.submit(ctx)
	case "reset":
		w.reset()
	case "lookup_github":
		w.profile = nil
		if w.cfg.Lookups != nil && w.usable(FieldGitHub, w.data.GitHub) {
			w.profile = w.cfg.Lookups.GitHubProfile(ctx, w.data.GitHub)
		}
	case "lookup_portfolio":
		w.portfolio = nil
		if w.cfg.Lookups != nil && w.usable(FieldPortfolio, w.data.Portfolio) {
			w.portfolio = w.cfg.Lookups.PageMetadata(ctx, w.data.Portfolio)
		}
	case "lookup_address":
		return w.lookupAddress(ctx, payload)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	return nil
}

func (w *Wizard) HandleInfo(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case ResumeUploaded:
		var rejected int
		for _, e := range m.Entries {
			if err := w.data.Resume.Add(e); err != nil {
				if !errors.Is(err, uploads.ErrMaxFilesReached) {
					return err
				}
				rejected++
			}
		}
		w.revalidate(FieldResume)
		if rejected > 0 {
			w.errors.Add(FieldResume, fmt.Sprintf("You can upload at most %d files.", w.data.Resume.Max()))
		}
		w.logger.Debug("resume received",
			logging.Int("files", len(m.Entries)),
			logging.Int("rejected", rejected))
	default:
		w.logger.Debug("ignored info message", logging.String("type", fmt.Sprintf("%T", msg)))
	}
	return nil
}

func (w *Wizard) Terminate(ctx context.Context, reason core.TerminateReason) error {
	w.logger.Debug("wizard closed",
		logging.String("reason", reason.String()),
		logging.Int("step", w.ctrl.State().Current()),
		logging.Bool("submitted", w.ctrl.Submitted()))
	return nil
}

func (w *Wizard) reset() {
	w.data = NewFormData(w.cfg.Defaults)
	w.ctrl = wizard.NewController(w.cfg.Steps,
		wizard.SchemaChecker{
			Schema: w.cfg.Schema,
			Values: func() forms.Values { return w.data },
		},
		wizard.WithSubmitter(w.cfg.Submitter),
		wizard.WithLogger(w.logger),
	)
	w.errors = forms.Errors{}
	w.notice = ""
	w.profile, w.portfolio = nil, nil
}

func (w *Wizard) update(payload map[string]any) error {
	field := protocol.PayloadString(payload, "field")
	if err := w.data.Set(field, protocol.PayloadString(payload, "value")); err != nil {
		return err
	}
	w.revalidate(field)
	switch field {
	case FieldGitHub:
		w.profile = nil
	case FieldPortfolio:
		w.portfolio = nil
	}
	return nil
}

// revalidate replaces the messages of the named top-level fields.
func (w *Wizard) revalidate(fields ...string) {
	for _, f := range fields {
		w.errors.Clear(f)
	}
	w.errors.Merge("", w.cfg.Schema.ValidateFields(w.data, fields...))
}

func (w *Wizard) updateJob(payload map[string]any) error {
	i, err := protocol.PayloadInt(payload, "index")
	if err != nil {
		return err
	}
	field := protocol.PayloadString(payload, "field")
	if err := w.data.SetJobField(i, field, protocol.PayloadString(payload, "value")); err != nil {
		if !errors.Is(err, ErrInvalidDate) {
			return err
		}
		path := JobPath(i, field)
		w.errors.Clear(path)
		w.errors.Add(path, "Invalid date.")
		return nil
	}

	delete(w.errors, FieldJobs)
	items := jobItems(w.cfg.Schema)
	if items == nil {
		return nil
	}
	row := items.Validate(w.data.Jobs[i])
	touched := []string{field}
	if field == JobFrom || field == JobTo {
		touched = []string{JobFrom, JobTo}
	}
	for _, name := range touched {
		path := JobPath(i, name)
		w.errors.Clear(path)
		if msgs := row[name]; len(msgs) > 0 {
			w.errors[path] = msgs
		}
	}
	return nil
}

func (w *Wizard) removeJob(payload map[string]any) error {
	i, err := protocol.PayloadInt(payload, "index")
	if err != nil {
		return err
	}
	if err := w.data.RemoveJob(i); err != nil {
		return err
	}
	shiftJobErrors(w.errors, i)
	return nil
}

// shiftJobErrors drops the messages of the removed row and renumbers the
// rows after it.
func shiftJobErrors(errs forms.Errors, removed int) {
	moved := forms.Errors{}
	for path, msgs := range errs.Under(FieldJobs) {
		rest, ok := strings.CutPrefix(path, FieldJobs+".")
		if !ok {
			continue
		}
		idx, tail, _ := strings.Cut(rest, ".")
		n, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}
		delete(errs, path)
		switch {
		case n < removed:
			moved[path] = msgs
		case n > removed:
			key := FieldJobs + "." + strconv.Itoa(n-1)
			if tail != "" {
				key = JobPath(n-1, tail)
			}
			moved[key] = msgs
		}
	}
	errs.Merge("", moved)
}

// gated applies the outcome of a step gate. The messages of the gated step
// are replaced; a cancelled check leaves everything as it was.
func (w *Wizard) gated(fields []string, errs forms.Errors, err error) error {
	if err != nil {
		return err
	}
	for _, f := range fields {
		w.errors.Clear(f)
	}
	w.errors.Merge("", errs)
	if errs.Valid() {
		w.notice = ""
	}
	return nil
}

func (w *Wizard) submit(ctx context.Context) error {
	errs, err := w.ctrl.Submit(ctx, w.data)
	switch {
	case err == nil && !errs.Valid():
		w.errors = errs
		w.notice = NoticeFixErrors
		if target := w.firstInvalidStep(); target >= 0 {
			if _, err := w.ctrl.Goto(ctx, target); err != nil {
				return err
			}
		}
		return nil
	case err == nil:
		w.errors = forms.Errors{}
		w.notice = ""
		return nil
	case errors.Is(err, wizard.ErrNotFinalStep),
		errors.Is(err, wizard.ErrAlreadySubmitted),
		errors.Is(err, wizard.ErrNoSubmitter),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		w.logger.Error("application delivery failed", logging.Err(err))
		w.notice = NoticeSubmitFailed
		return nil
	}
}

// firstInvalidStep returns the index of the earliest step owning an
// error, or -1.
func (w *Wizard) firstInvalidStep() int {
	for i, s := range w.cfg.Steps.Steps() {
		for _, path := range w.errors.Paths() {
			root, _, _ := strings.Cut(path, ".")
			if slices.Contains(s.Fields, root) {
				return i
			}
		}
	}
	return -1
}

// usable reports whether value passes its field rules, so lookups are
// only attempted for well-formed input.
func (w *Wizard) usable(field, value string) bool {
	return value != "" && len(w.cfg.Schema.ValidateValue(field, value)) == 0
}

func (w *Wizard) lookupAddress(ctx context.Context, payload map[string]any) error {
	if w.cfg.Lookups == nil {
		return nil
	}
	lat, err := protocol.PayloadFloat(payload, "lat")
	if err != nil {
		return err
	}
	lon, err := protocol.PayloadFloat(payload, "lon")
	if err != nil {
		return err
	}
	addr := w.cfg.Lookups.ReverseGeocode(ctx, lat, lon)
	if addr == nil {
		return nil
	}

	var filled []string
	for field, value := range map[string]string{
		FieldCity:    addr.City,
		FieldState:   addr.State,
		FieldCountry: addr.Country,
		FieldZip:     addr.Zip,
	} {
		if value == "" {
			continue
		}
		if err := w.data.Set(field, value); err != nil {
			return err
		}
		filled = append(filled, field)
	}
	if len(filled) > 0 {
		w.revalidate(filled...)
	}
	return nil
}
