package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/status"
)

func TestController_EnableRunsAndDisableRestores(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	sink := &recordingSink{}
	runner := newTestRunner(t, srv.URL, sink, 0)
	doc := parseDoc(t, imageFixture)
	ctrl := NewController(doc, []classify.Category{classify.Image}, runner, sink, nil)

	runID, err := ctrl.Enable()
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.True(t, ctrl.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Wait(ctx))

	// The run finished but remediation stays active until disabled.
	assert.True(t, ctrl.Enabled())
	require.NotEmpty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))

	again, err := ctrl.Enable()
	require.NoError(t, err)
	assert.Equal(t, runID, again, "re-enabling an active controller joins the current run")

	reverted, err := ctrl.Disable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)
	assert.False(t, ctrl.Enabled())

	// The document is back to its authored state.
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
	_, hasAlt := doc.Query("img").Attr("alt")
	assert.False(t, hasAlt)
	founder := doc.Query(`img[src="/team/founder.jpg"]`)
	alt, _ := founder.Attr("alt")
	assert.Equal(t, "Founder portrait at the office", alt)

	// A teardown event closes out the session.
	var teardown *status.Event
	for _, e := range sink.all() {
		if e.Phase == "teardown" {
			teardown = &e
			break
		}
	}
	require.NotNil(t, teardown)
	assert.Equal(t, status.EventSucceeded, teardown.Type)
	assert.Equal(t, runID, teardown.RunID)
}

func TestController_DisableIsNoOpWhenInactive(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, imageFixture)
	ctrl := NewController(doc, nil, runner, nil, nil)

	reverted, err := ctrl.Disable(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reverted)
}

func TestController_DisableCancelsInFlightWork(t *testing.T) {
	var inFlight atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		inFlight.Add(1)
		<-release
		w.Write(modelReply(stubPayloads[schemaName(body)]))
	}))
	defer srv.Close()
	defer close(release)

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, `<img src="/products/mug.jpg">`)
	ctrl := NewController(doc, []classify.Category{classify.Image}, runner, nil, nil)

	_, err := ctrl.Enable()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return inFlight.Load() > 0 }, 10*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reverted, err := ctrl.Disable(ctx)
	require.NoError(t, err)
	assert.Zero(t, reverted)
	assert.False(t, ctrl.Enabled())

	// The superseded result never landed on the document.
	assert.Empty(t, doc.QueryAll("["+classify.AttrGenerated+"]"))
	_, hasAlt := doc.Query("img").Attr("alt")
	assert.False(t, hasAlt)
}

func TestController_StateSnapshot(t *testing.T) {
	srv := stubModel(t, nil)
	defer srv.Close()

	runner := newTestRunner(t, srv.URL, status.Discard{}, 0)
	doc := parseDoc(t, imageFixture)
	ctrl := NewController(doc, nil, runner, nil, nil)

	st := ctrl.State()
	assert.False(t, st.Enabled)
	assert.Empty(t, st.RunID)
	assert.Equal(t, []string{"image", "formfield", "link"}, st.Categories)
}
