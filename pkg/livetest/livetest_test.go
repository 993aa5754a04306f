package livetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/pkg/core"
)

type greeter struct {
	core.BaseComponent
	name string
	id   string
}

func (g *greeter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	g.name = params.GetDefault("name", "world")
	g.id = session.GetString(core.SessionID)
	return nil
}

func (g *greeter) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div id="root" class="card wide" data-session="%s"><h1>Hello, %s</h1><ul><li class="item">a</li><li class="item">b</li></ul><input name="jobs.0.title" value="x"></div>`,
			g.id, g.name)
		return err
	})
}

func (g *greeter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	if event != "rename" {
		return errors.New("unknown event")
	}
	g.name, _ = payload["name"].(string)
	return nil
}

func (g *greeter) HandleInfo(ctx context.Context, msg any) error {
	if s, ok := msg.(string); ok {
		g.name = strings.ToUpper(s)
	}
	return nil
}

func TestView_MountAndEvents(t *testing.T) {
	v := Mount(t, &greeter{}, WithParams(core.Params{"name": "Ada"}), Connected("s-1"))

	v.AssertText("Hello, Ada").AssertElement("div#root.card.wide")
	attr, ok := v.Attr("#root", "data-session")
	require.True(t, ok)
	assert.Equal(t, "s-1", attr)

	v.Event("rename", map[string]any{"name": "Grace"})
	assert.Equal(t, "Hello, Grace", v.Text("h1"))
	v.AssertNoText("Ada")

	err := v.EventErr("explode", nil)
	assert.Error(t, err)
	assert.Len(t, v.Events(), 2)

	v.Info("linus")
	assert.Equal(t, "Hello, LINUS", v.Text("h1"))
}

func TestSelector(t *testing.T) {
	v := Mount(t, &greeter{})

	assert.Len(t, v.Find("li.item"), 2)
	assert.Len(t, v.Find("#root ul li"), 2)
	assert.Len(t, v.Find("ul .item"), 2)
	assert.True(t, v.Has(`input[name="jobs.0.title"]`))
	assert.True(t, v.Has("input[value]"))
	assert.False(t, v.Has("input[name=other]"))
	assert.False(t, v.Has("section li"))
	assert.False(t, v.Has("li.missing"))
	assert.Equal(t, "a b", v.Text("ul"))
}
