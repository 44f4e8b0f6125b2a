package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/jonathan/a11y-remediator/internal/dom"
)

// maxMediaBytes bounds how much source media is read; anything larger is
// treated as undecodable.
const maxMediaBytes = 20 << 20

// sourceImage resolves, fetches and decodes an image element's source media
// for the static backend. Every failure degrades rather than propagating.
func (r *Renderer) sourceImage(ctx context.Context, doc dom.Document, n dom.Node) (image.Image, *DegradedError) {
	src, ok := n.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return nil, &DegradedError{Stage: "media", Message: "element has no source"}
	}

	data, contentType, err := r.loadMedia(ctx, doc.URL(), src)
	if err != nil {
		return nil, &DegradedError{Stage: "media", Message: "source fetch failed", Cause: err}
	}

	if isSVG(src, contentType, data) {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, &DegradedError{Stage: "svg", Message: "vector rasterization failed", Cause: err}
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DegradedError{Stage: "decode", Message: "source media not decodable", Cause: err}
	}
	return img, nil
}

// loadMedia returns media bytes from a data URL or over HTTP, resolved
// against the document base.
func (r *Renderer) loadMedia(ctx context.Context, base, src string) ([]byte, string, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src)
	}

	resolved, err := resolveURL(base, src)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request for %s: %w", resolved, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media request failed for %s: %w", resolved, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media request for %s returned HTTP %d", resolved, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body for %s: %w", resolved, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func resolveURL(base, src string) (string, error) {
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid media URL %q: %w", src, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if base == "" {
		return "", fmt.Errorf("relative media URL %q with no document base", src)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid document base %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}

func decodeDataURL(src string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	contentType, _, _ := strings.Cut(meta, ";")
	if strings.Contains(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data URL: %w", err)
		}
		return data, contentType, nil
	}
	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid data URL payload: %w", err)
	}
	return []byte(decoded), contentType, nil
}

func isSVG(src, contentType string, data []byte) bool {
	if strings.Contains(contentType, "image/svg") {
		return true
	}
	if u, err := url.Parse(src); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".svg") {
		return true
	}
	head := strings.TrimSpace(string(data[:min(len(data), 256)]))
	return strings.HasPrefix(head, "<svg") || (strings.HasPrefix(head, "<?xml") && strings.Contains(head, "<svg"))
}

// rasterizeSVG parses and re-renders vector source media onto a raster
// surface. The viewbox determines the output size, bounded to the capture
// dimensions.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = 400, 300
	}
	if w > MaxWidth {
		h = h * MaxWidth / w
		w = MaxWidth
	}
	if h > MaxHeight {
		w = w * MaxHeight / h
		h = MaxHeight
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg viewbox degenerate after clamping")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return rgba, nil
}
