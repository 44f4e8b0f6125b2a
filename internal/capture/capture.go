// Package capture rasterizes target elements into the paired images sent
// with every inference request: the element in isolation and the element
// within its surrounding page region. A capture call always resolves. Any
// failure along the way (unreachable media, undecodable formats, vector
// edge cases, timeouts) degrades to a deterministic placeholder embedding
// the element's metadata, and the degradation is carried inside the bundle
// rather than returned as an error.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

// Dimension and quality bounds. Both images are transmitted on every
// request, so the context image trades fidelity for size.
const (
	MaxWidth  = 800
	MaxHeight = 600

	isolatedQuality = 85
	contextQuality  = 60

	// Context region margins: proportional for images, fixed for the
	// smaller form fields and links.
	imageMarginFactor = 1.5
	fixedMargin       = 150.0

	isolatedPadding = 8.0
)

// DefaultTimeout bounds a whole capture call, including media fetches.
const DefaultTimeout = 5 * time.Second

// DefaultUserAgent identifies media requests issued during capture.
const DefaultUserAgent = "Mozilla/5.0 (compatible; A11yAgent/1.0)"

// Bundle is the pair of encoded captures for one node. Degraded is non-nil
// when any render path fell back to a placeholder; the bundle is still
// usable.
type Bundle struct {
	Isolated []byte
	Context  []byte
	Degraded *DegradedError
}

// DegradedError describes why a capture fell back to a placeholder. It is
// informational: capture never fails outright.
type DegradedError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *DegradedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("capture degraded at %s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("capture degraded at %s: %s", e.Stage, e.Message)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

// Options configures a Renderer.
type Options struct {
	// Timeout bounds one Capture call end to end.
	Timeout time.Duration
	// HTTPClient fetches source media for the static backend.
	HTTPClient *http.Client
	UserAgent  string
	Logger     *zap.Logger
}

// Renderer produces capture bundles. Safe for concurrent use.
type Renderer struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewRenderer builds a Renderer, filling unset options with defaults.
func NewRenderer(opts Options) *Renderer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Renderer{
		client:    opts.HTTPClient,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// Capture renders both images for the node. It always returns a complete
// bundle within the renderer's timeout.
func (r *Renderer) Capture(ctx context.Context, doc dom.Document, cat classify.Category, n dom.Node) Bundle {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	meta := metadataFor(cat, n)
	var degraded *DegradedError

	isolated, deg := r.isolated(ctx, doc, cat, n)
	if deg != nil {
		r.logger.Debug("isolated capture degraded",
			zap.String("node", n.Handle()), zap.String("reason", deg.Message))
		degraded = deg
		isolated = placeholderImage(meta)
	}

	contextual, deg := r.contextual(ctx, doc, cat, n)
	if deg != nil {
		r.logger.Debug("context capture degraded",
			zap.String("node", n.Handle()), zap.String("reason", deg.Message))
		if degraded == nil {
			degraded = deg
		}
		contextual = placeholderImage(meta)
	}

	return Bundle{
		Isolated: encodeJPEG(isolated, isolatedQuality),
		Context:  encodeJPEG(contextual, contextQuality),
		Degraded: degraded,
	}
}

// isolated renders the node's own bounds. The live backend screenshots the
// region natively; the static backend decodes source media for images and
// composes a synthetic rendering for fields and links.
func (r *Renderer) isolated(ctx context.Context, doc dom.Document, cat classify.Category, n dom.Node) (image.Image, *DegradedError) {
	if rc, ok := doc.(dom.RegionCapturer); ok {
		img, err := captureNative(ctx, rc, n.Bounds().Expand(isolatedPadding))
		if err == nil {
			return img, nil
		}
		return nil, &DegradedError{Stage: "isolated", Message: "native region capture failed", Cause: err}
	}
	if cat == classify.Image {
		return r.sourceImage(ctx, doc, n)
	}
	return composeElement(n), nil
}

// contextual renders the node's surrounding region with the target
// outlined.
func (r *Renderer) contextual(ctx context.Context, doc dom.Document, cat classify.Category, n dom.Node) (image.Image, *DegradedError) {
	region := contextRegion(cat, n.Bounds())
	if body := doc.Query("body"); body != nil {
		region = clampRect(region, body.Bounds())
	}
	if region.Empty() {
		return nil, &DegradedError{Stage: "context", Message: "element has no geometry"}
	}

	if rc, ok := doc.(dom.RegionCapturer); ok {
		img, err := captureNative(ctx, rc, region)
		if err == nil {
			return img, nil
		}
		return nil, &DegradedError{Stage: "context", Message: "native region capture failed", Cause: err}
	}
	return composeContext(doc, n, region), nil
}

func captureNative(ctx context.Context, rc dom.RegionCapturer, region dom.Rect) (image.Image, error) {
	raw, err := rc.CaptureRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// contextRegion expands the target bounds by the per-category margin:
// proportional to the larger dimension for images, a fixed band for the
// smaller form fields and links.
func contextRegion(cat classify.Category, bounds dom.Rect) dom.Rect {
	if cat == classify.Image {
		return bounds.Expand(imageMarginFactor * max(bounds.W, bounds.H))
	}
	return bounds.Expand(fixedMargin)
}

func clampRect(r, page dom.Rect) dom.Rect {
	x1 := max(r.X, page.X)
	y1 := max(r.Y, page.Y)
	x2 := min(r.X+r.W, page.X+page.W)
	y2 := min(r.Y+r.H, page.Y+page.H)
	if x2 <= x1 || y2 <= y1 {
		return dom.Rect{}
	}
	return dom.Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// encodeJPEG bounds the image to the capture dimensions and encodes it at
// the given quality.
func encodeJPEG(img image.Image, quality int) []byte {
	b := img.Bounds()
	if b.Dx() > MaxWidth || b.Dy() > MaxHeight {
		img = imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		// Encoding an in-memory RGBA into a buffer cannot fail in
		// practice; keep the contract that capture always resolves.
		return nil
	}
	return buf.Bytes()
}
