// Package livetest drives live components in unit tests without a browser
// or a WebSocket connection.
package livetest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/applyform/pkg/core"
)

// Event is one event pushed to the component.
type Event struct {
	Name    string
	Payload map[string]any
}

// View is a mounted component under test.
type View struct {
	t         testing.TB
	component core.Component
	params    core.Params
	session   core.Session
	rendered  string
	doc       *html.Node
	events    []Event
}

// MountOption configures Mount.
type MountOption func(*View)

// WithParams sets mount parameters.
func WithParams(params core.Params) MountOption {
	return func(v *View) {
		v.params = params
	}
}

// WithSession sets session data.
func WithSession(session core.Session) MountOption {
	return func(v *View) {
		for k, val := range session {
			v.session[k] = val
		}
	}
}

// Connected mounts as a live connection with session id.
func Connected(id string) MountOption {
	return func(v *View) {
		v.session[core.SessionID] = id
		v.session[core.SessionConnected] = true
	}
}

// Mount mounts comp and renders it once.
func Mount(t testing.TB, comp core.Component, opts ...MountOption) *View {
	t.Helper()

	v := &View{
		t:         t,
		component: comp,
		params:    core.Params{},
		session:   core.Session{},
	}
	for _, opt := range opts {
		opt(v)
	}

	if err := comp.Mount(context.Background(), v.params, v.session); err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	v.render()
	return v
}

// Event pushes an event and fails the test if the component rejects it.
func (v *View) Event(name string, payload map[string]any) *View {
	v.t.Helper()
	if err := v.EventErr(name, payload); err != nil {
		v.t.Errorf("event %q failed: %v", name, err)
	}
	return v
}

// EventErr pushes an event and returns the component's error. The view is
// re-rendered either way, as the live router does.
func (v *View) EventErr(name string, payload map[string]any) error {
	v.t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	v.events = append(v.events, Event{Name: name, Payload: payload})
	err := v.component.HandleEvent(context.Background(), name, payload)
	v.render()
	return err
}

// Info delivers a server-side message.
func (v *View) Info(msg any) *View {
	v.t.Helper()
	if err := v.component.HandleInfo(context.Background(), msg); err != nil {
		v.t.Errorf("info failed: %v", err)
	}
	v.render()
	return v
}

// Terminate ends the component.
func (v *View) Terminate(reason core.TerminateReason) {
	v.t.Helper()
	if err := v.component.Terminate(context.Background(), reason); err != nil {
		v.t.Errorf("terminate failed: %v", err)
	}
}

func (v *View) render() {
	v.t.Helper()

	ctx := context.Background()
	renderer := v.component.Render(ctx)
	if renderer == nil {
		v.t.Fatalf("render returned nil")
	}
	var buf bytes.Buffer
	if err := renderer.Render(ctx, &buf); err != nil {
		v.t.Fatalf("render failed: %v", err)
	}
	v.rendered = buf.String()

	doc, err := html.Parse(strings.NewReader(v.rendered))
	if err != nil {
		v.t.Fatalf("parse rendered html: %v", err)
	}
	v.doc = doc
}

// HTML returns the current rendered markup.
func (v *View) HTML() string {
	return v.rendered
}

// Component returns the component under test.
func (v *View) Component() core.Component {
	return v.component
}

// Events returns the events pushed so far.
func (v *View) Events() []Event {
	return v.events
}

// Find returns the elements matching selector. See Selector.
func (v *View) Find(selector string) []*html.Node {
	return ParseSelector(selector).FindAll(v.doc)
}

// Has reports whether an element matches selector.
func (v *View) Has(selector string) bool {
	return len(v.Find(selector)) > 0
}

// Text returns the whitespace-collapsed text of the first match.
func (v *View) Text(selector string) string {
	nodes := v.Find(selector)
	if len(nodes) == 0 {
		return ""
	}
	return TextContent(nodes[0])
}

// Attr returns an attribute of the first match.
func (v *View) Attr(selector, name string) (string, bool) {
	nodes := v.Find(selector)
	if len(nodes) == 0 {
		return "", false
	}
	return Attr(nodes[0], name)
}

// AssertElement fails unless an element matches selector.
func (v *View) AssertElement(selector string) *View {
	v.t.Helper()
	if !v.Has(selector) {
		v.t.Errorf("element not found: %s\nrendered:\n%s", selector, v.rendered)
	}
	return v
}

// AssertNoElement fails if an element matches selector.
func (v *View) AssertNoElement(selector string) *View {
	v.t.Helper()
	if v.Has(selector) {
		v.t.Errorf("element should not exist: %s", selector)
	}
	return v
}

// AssertText fails unless the visible text contains text.
func (v *View) AssertText(text string) *View {
	v.t.Helper()
	if !strings.Contains(TextContent(v.doc), text) {
		v.t.Errorf("text not found: %q\nrendered:\n%s", text, v.rendered)
	}
	return v
}

// AssertNoText fails if the visible text contains text.
func (v *View) AssertNoText(text string) *View {
	v.t.Helper()
	if strings.Contains(TextContent(v.doc), text) {
		v.t.Errorf("text should not exist: %q", text)
	}
	return v
}
