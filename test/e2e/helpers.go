package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/fseditor/pkg/editor"
	"github.com/marmos91/fseditor/pkg/filesystem"
)

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends a request to the editor mount with the given query and returns
// the read response.
func (tc *TestContext) Do(method string, query url.Values, contentType string, body io.Reader) *Response {
	tc.T.Helper()

	target := tc.BaseURL
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		tc.T.Fatalf("Failed to build %s request: %v", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if u, p := tc.Editor.Editor.Username, tc.Editor.Editor.Password; u != "" {
		req.SetBasicAuth(u, p)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		tc.T.Fatalf("%s %s failed: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Failed to read response body: %v", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

// Get reads the file or lists the directory at p.
func (tc *TestContext) Get(p string) *Response {
	tc.T.Helper()
	return tc.Do(http.MethodGet, url.Values{"path": {p}}, "", nil)
}

// List decodes the listing of dir.
func (tc *TestContext) List(dir string) []editor.DirectoryEntry {
	tc.T.Helper()

	resp := tc.Get(dir)
	if resp.Status != http.StatusOK {
		tc.T.Fatalf("Listing %s: expected 200, got %d: %s", dir, resp.Status, resp.Body)
	}

	var entries []editor.DirectoryEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		tc.T.Fatalf("Listing %s is not valid JSON: %v", dir, err)
	}
	return entries
}

// Stats decodes the filesystem usage report.
func (tc *TestContext) Stats() filesystem.Stats {
	tc.T.Helper()

	resp := tc.Do(http.MethodGet, url.Values{"stats": {""}}, "", nil)
	if resp.Status != http.StatusOK {
		tc.T.Fatalf("Stats: expected 200, got %d: %s", resp.Status, resp.Body)
	}

	var stats filesystem.Stats
	if err := json.Unmarshal(resp.Body, &stats); err != nil {
		tc.T.Fatalf("Stats is not valid JSON: %v", err)
	}
	return stats
}

// Put creates an empty file, or a directory when p ends in a slash.
func (tc *TestContext) Put(p string) *Response {
	tc.T.Helper()
	return tc.Do(http.MethodPut, url.Values{"path": {p}}, "", nil)
}

// Delete removes the file or empty directory at p.
func (tc *TestContext) Delete(p string) *Response {
	tc.T.Helper()
	return tc.Do(http.MethodDelete, url.Values{"path": {p}}, "", nil)
}

// Mkdir creates dir below base with an urlencoded form.
func (tc *TestContext) Mkdir(base, dir string) *Response {
	tc.T.Helper()
	form := url.Values{"path": {base}, "dir": {dir}}
	return tc.Do(http.MethodPost, nil, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// Upload stores each file of files below dir with one multipart request.
// Files are sent in the order of names.
func (tc *TestContext) Upload(dir string, names []string, files map[string][]byte) *Response {
	tc.T.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("path", dir); err != nil {
		tc.T.Fatalf("Failed to write path field: %v", err)
	}
	for _, name := range names {
		part, err := mw.CreateFormFile("data", name)
		if err != nil {
			tc.T.Fatalf("Failed to create form file %s: %v", name, err)
		}
		if _, err := part.Write(files[name]); err != nil {
			tc.T.Fatalf("Failed to write form file %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		tc.T.Fatalf("Failed to close multipart body: %v", err)
	}

	return tc.Do(http.MethodPost, nil, mw.FormDataContentType(), &body)
}

// UploadFile stores a single file below dir.
func (tc *TestContext) UploadFile(dir, name string, data []byte) *Response {
	tc.T.Helper()
	return tc.Upload(dir, []string{name}, map[string][]byte{name: data})
}

// entryNames returns the names of entries in listing order.
func entryNames(entries []editor.DirectoryEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
