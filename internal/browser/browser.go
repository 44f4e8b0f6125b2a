// Package browser implements the document capability interface against a
// live page driven over the Chrome DevTools protocol. Element references
// are DevTools node ids resolved to script objects per operation, so every
// read and mutation observes the page as it currently is, including changes
// made by page scripts between pipeline phases.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Defaults. Navigation covers initial load of script-heavy pages; the
// settle delay is the residual wait after the frame barrier for mutation
// observers scheduled off the frame loop.
const (
	DefaultNavigateTimeout = 30 * time.Second
	DefaultOpTimeout       = 10 * time.Second
	DefaultSettleDelay     = 350 * time.Millisecond

	screenshotQuality = 90
)

var errNoNode = errors.New("no matching node")

// Options configures a browser session.
type Options struct {
	// NavigateTimeout bounds the initial page load.
	NavigateTimeout time.Duration
	// OpTimeout bounds each individual document operation.
	OpTimeout time.Duration
	// SettleDelay is the residual wait appended to the settle barrier.
	SettleDelay time.Duration
	// Headful disables headless mode for debugging sessions.
	Headful bool
	Logger  *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = DefaultNavigateTimeout
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// LiveDocument is a remediation session against one open browser tab. It
// implements the document interface plus native region screenshots. Safe
// for concurrent use; DevTools serializes commands per target.
type LiveDocument struct {
	ctx         context.Context
	cancels     []context.CancelFunc
	url         string
	opTimeout   time.Duration
	settleDelay time.Duration
	logger      *zap.Logger
}

// Open launches a browser, navigates to url and waits for the document
// body. The returned session must be closed to release the browser.
func Open(ctx context.Context, url string, opts Options) (*LiveDocument, error) {
	opts.fillDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", !opts.Headful),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("hide-scrollbars", true),
		)...,
	)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &LiveDocument{
		ctx:         tabCtx,
		cancels:     []context.CancelFunc{tabCancel, allocCancel},
		opTimeout:   opts.OpTimeout,
		settleDelay: opts.SettleDelay,
		logger:      opts.Logger,
	}

	navCtx, cancel := context.WithTimeout(tabCtx, opts.NavigateTimeout)
	defer cancel()
	var location string
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	d.url = location
	d.logger.Debug("browser session open", zap.String("url", location))
	return d, nil
}

// Close shuts the tab and the browser down.
func (d *LiveDocument) Close() error {
	for _, cancel := range d.cancels {
		cancel()
	}
	return nil
}

// run executes one DevTools operation under the session's op timeout.
func (d *LiveDocument) run(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.opTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.ActionFunc(fn))
}

// eval calls fn as a method on the node's element, marshaling args in and
// the by-value result out. A nil res discards the return value.
func (d *LiveDocument) eval(id cdp.NodeID, fn string, res interface{}, args ...interface{}) error {
	return d.run(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(id).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		call := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(res != nil)
		if len(args) > 0 {
			callArgs := make([]*runtime.CallArgument, len(args))
			for i, a := range args {
				b, err := json.Marshal(a)
				if err != nil {
					return fmt.Errorf("marshal argument %d: %w", i, err)
				}
				callArgs[i] = &runtime.CallArgument{Value: b}
			}
			call = call.WithArguments(callArgs)
		}
		ret, exc, err := call.Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("node script failed: %s", exc.Text)
		}
		if res != nil && ret != nil && ret.Value != nil {
			return json.Unmarshal(ret.Value, res)
		}
		return nil
	})
}

// evalToNode calls fn expecting an element back and returns its node id.
// errNoNode is returned when the script yields null.
func (d *LiveDocument) evalToNode(id cdp.NodeID, fn string, args ...interface{}) (cdp.NodeID, error) {
	var out cdp.NodeID
	err := d.run(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(id).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		call := runtime.CallFunctionOn(fn).WithObjectID(obj.ObjectID)
		if len(args) > 0 {
			callArgs := make([]*runtime.CallArgument, len(args))
			for i, a := range args {
				b, err := json.Marshal(a)
				if err != nil {
					return fmt.Errorf("marshal argument %d: %w", i, err)
				}
				callArgs[i] = &runtime.CallArgument{Value: b}
			}
			call = call.WithArguments(callArgs)
		}
		ret, exc, err := call.Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("node script failed: %s", exc.Text)
		}
		if ret == nil || ret.ObjectID == "" {
			return errNoNode
		}
		nodeID, err := cdpdom.RequestNode(ret.ObjectID).Do(ctx)
		if err != nil {
			return fmt.Errorf("request node: %w", err)
		}
		out = nodeID
		return nil
	})
	return out, err
}

// QueryAll returns every element matching selector in document order.
func (d *LiveDocument) QueryAll(selector string) []dom.Node {
	var ids []cdp.NodeID
	err := d.run(func(ctx context.Context) error {
		root, err := cdpdom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		ids, err = cdpdom.QuerySelectorAll(root.NodeID, selector).Do(ctx)
		return err
	})
	if err != nil {
		d.logger.Debug("query failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	nodes := make([]dom.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, &liveNode{d: d, id: id})
	}
	return nodes
}

// Query returns the first element matching selector, or nil.
func (d *LiveDocument) Query(selector string) dom.Node {
	nodes := d.QueryAll(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Title returns the page's current title.
func (d *LiveDocument) Title() string {
	var title string
	if err := d.run(chromedp.Title(&title).Do); err != nil {
		d.logger.Debug("title read failed", zap.Error(err))
		return ""
	}
	return strings.Join(strings.Fields(title), " ")
}

// URL returns the document location recorded after navigation.
func (d *LiveDocument) URL() string {
	return d.url
}

// Settle is the mutation barrier: two animation frames guarantee issued
// DevTools mutations have been applied and the page has painted, then a
// residual delay covers observers the page schedules off the frame loop.
func (d *LiveDocument) Settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var painted bool
	err := d.run(chromedp.Evaluate(
		`new Promise(resolve => requestAnimationFrame(() => requestAnimationFrame(() => resolve(true))))`,
		&painted,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	).Do)
	if err != nil {
		return fmt.Errorf("settle barrier: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.settleDelay):
		return nil
	}
}

// Render serializes the live tree, including applied mutations.
func (d *LiveDocument) Render(w io.Writer) error {
	var html string
	err := d.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery).Do)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	if _, err := io.WriteString(w, "<!DOCTYPE html>\n"+html); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// CaptureRegion screenshots the given page-coordinate region.
func (d *LiveDocument) CaptureRegion(ctx context.Context, region dom.Rect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region.Empty() {
		return nil, fmt.Errorf("capture region is empty")
	}
	var shot []byte
	err := d.run(func(ctx context.Context) error {
		var err error
		shot, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(screenshotQuality).
			WithClip(&page.Viewport{
				X:      region.X,
				Y:      region.Y,
				Width:  region.W,
				Height: region.H,
				Scale:  1,
			}).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("capture region: %w", err)
	}
	return shot, nil
}

// liveNode is one element reference within the session.
type liveNode struct {
	d  *LiveDocument
	id cdp.NodeID
}

// Handle walks the ancestor chain in-page and encodes the element's
// position, matching the static backend's format.
func (n *liveNode) Handle() string {
	var handle string
	err := n.d.eval(n.id, `function() {
		const parts = [];
		let el = this;
		while (el && el.nodeType === 1 && el.tagName !== 'HTML') {
			let idx = 0, sib = el;
			while ((sib = sib.previousElementSibling) !== null) idx++;
			const name = el.tagName.toLowerCase();
			parts.unshift(name === 'body' || name === 'head' ? name : name + '[' + idx + ']');
			el = el.parentElement;
		}
		return parts.join('/');
	}`, &handle)
	if err != nil {
		n.d.logger.Debug("handle read failed", zap.Error(err))
		return fmt.Sprintf("node:%d", n.id)
	}
	return handle
}

func (n *liveNode) Tag() string {
	var tag string
	if err := n.d.eval(n.id, `function() { return this.tagName.toLowerCase(); }`, &tag); err != nil {
		return ""
	}
	return tag
}

func (n *liveNode) Attr(name string) (string, bool) {
	var res struct {
		Has   bool   `json:"has"`
		Value string `json:"value"`
	}
	err := n.d.eval(n.id, `function(name) {
		return {has: this.hasAttribute(name), value: this.getAttribute(name) || ""};
	}`, &res, name)
	if err != nil {
		n.d.logger.Debug("attr read failed", zap.String("attr", name), zap.Error(err))
		return "", false
	}
	return res.Value, res.Has
}

func (n *liveNode) SetAttr(name, value string) error {
	return n.d.eval(n.id, `function(name, value) { this.setAttribute(name, value); }`, nil, name, value)
}

func (n *liveNode) RemoveAttr(name string) error {
	return n.d.eval(n.id, `function(name) { this.removeAttribute(name); }`, nil, name)
}

func (n *liveNode) Text() string {
	var text string
	if err := n.d.eval(n.id, `function() { return this.innerText || this.textContent || ""; }`, &text); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func (n *liveNode) SetText(text string) error {
	return n.d.eval(n.id, `function(text) { this.textContent = text; }`, nil, text)
}

// Bounds returns the element's page-coordinate box, scroll included, so
// regions derived from it line up with CaptureRegion clips.
func (n *liveNode) Bounds() dom.Rect {
	var rect dom.Rect
	err := n.d.eval(n.id, `function() {
		const r = this.getBoundingClientRect();
		return {x: r.x + window.scrollX, y: r.y + window.scrollY, w: r.width, h: r.height};
	}`, &rect)
	if err != nil {
		n.d.logger.Debug("bounds read failed", zap.Error(err))
		return dom.Rect{}
	}
	return rect
}

func (n *liveNode) Style(prop string) string {
	var value string
	err := n.d.eval(n.id, `function(prop) {
		return getComputedStyle(this).getPropertyValue(prop);
	}`, &value, prop)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (n *liveNode) Parent() dom.Node {
	id, err := n.d.evalToNode(n.id, `function() { return this.parentElement; }`)
	if err != nil {
		return nil
	}
	return &liveNode{d: n.d, id: id}
}

func (n *liveNode) Children() []dom.Node {
	var out []dom.Node
	err := n.d.run(func(ctx context.Context) error {
		node, err := cdpdom.DescribeNode().WithNodeID(n.id).WithDepth(1).Do(ctx)
		if err != nil {
			return err
		}
		backendIDs := make([]cdp.BackendNodeID, 0, len(node.Children))
		for _, c := range node.Children {
			if c.NodeType == cdp.NodeTypeElement {
				backendIDs = append(backendIDs, c.BackendNodeID)
			}
		}
		if len(backendIDs) == 0 {
			return nil
		}
		ids, err := cdpdom.PushNodesByBackendIDsToFrontend(backendIDs).Do(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			out = append(out, &liveNode{d: n.d, id: id})
		}
		return nil
	})
	if err != nil {
		n.d.logger.Debug("children read failed", zap.Error(err))
		return nil
	}
	return out
}

func (n *liveNode) Index() int {
	var idx int
	err := n.d.eval(n.id, `function() {
		let i = 0, el = this;
		while ((el = el.previousElementSibling) !== null) i++;
		return i;
	}`, &idx)
	if err != nil {
		return 0
	}
	return idx
}

func (n *liveNode) Closest(selector string) dom.Node {
	id, err := n.d.evalToNode(n.id, `function(sel) { return this.closest(sel); }`, selector)
	if err != nil {
		return nil
	}
	return &liveNode{d: n.d, id: id}
}

func (n *liveNode) Find(selector string) []dom.Node {
	var ids []cdp.NodeID
	err := n.d.run(func(ctx context.Context) error {
		var err error
		ids, err = cdpdom.QuerySelectorAll(n.id, selector).Do(ctx)
		return err
	})
	if err != nil {
		n.d.logger.Debug("scoped query failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	nodes := make([]dom.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, &liveNode{d: n.d, id: id})
	}
	return nodes
}

func (n *liveNode) InsertElement(pos dom.InsertPosition, tag string, attrs map[string]string, text string) (dom.Node, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	id, err := n.d.evalToNode(n.id, `function(pos, tag, attrs, text) {
		const el = document.createElement(tag);
		for (const [k, v] of Object.entries(attrs)) el.setAttribute(k, v);
		el.textContent = text;
		this.insertAdjacentElement(pos, el);
		return el;
	}`, string(pos), tag, attrs, text)
	if err != nil {
		return nil, fmt.Errorf("insert element: %s at %s: %w", tag, pos, err)
	}
	return &liveNode{d: n.d, id: id}, nil
}

func (n *liveNode) Remove() error {
	return n.d.eval(n.id, `function() { this.remove(); }`, nil)
}
