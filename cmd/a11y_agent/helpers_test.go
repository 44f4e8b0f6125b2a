package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/a11y-remediator/internal/classify"
	"github.com/jonathan/a11y-remediator/internal/config"
	"github.com/jonathan/a11y-remediator/internal/dom"
)

func TestCapabilities_ResolvesConfiguredOrder(t *testing.T) {
	caps, err := capabilities([]string{"link", "image"})
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, classify.Link, caps[0].Category)
	assert.Equal(t, classify.Image, caps[1].Category)
}

func TestCapabilities_UnknownCategory(t *testing.T) {
	_, err := capabilities([]string{"video"})
	require.Error(t, err)
}

func TestOpenDocument_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path,
		[]byte(`<html><head><title>Fixture</title></head><body><img src="a.png"></body></html>`), 0o644))

	doc, closeDoc, err := openDocument(context.Background(), config.Config{}, path, "", zap.NewNop())
	require.NoError(t, err)
	defer closeDoc() //nolint:errcheck

	assert.Equal(t, "Fixture", doc.Title())
	assert.Len(t, doc.QueryAll("img"), 1)
}

func TestOpenDocument_MissingFile(t *testing.T) {
	_, _, err := openDocument(context.Background(), config.Config{},
		filepath.Join(t.TempDir(), "absent.html"), "", zap.NewNop())
	require.Error(t, err)
}

func TestOpenDocument_FetchesURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Remote</title></head><body></body></html>`))
	}))
	defer server.Close()

	doc, closeDoc, err := openDocument(context.Background(), config.Config{}, "", server.URL, zap.NewNop())
	require.NoError(t, err)
	defer closeDoc() //nolint:errcheck

	assert.Equal(t, "Remote", doc.Title())
	assert.Equal(t, server.URL, doc.URL())
}

func TestWriteDocument_WritesFile(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<html><body><p>hello</p></body></html>`, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.html")
	require.NoError(t, writeDocument(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>hello</p>")
}
