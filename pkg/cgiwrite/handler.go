package cgiwrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

// Handler is the CGI write path's net/http.Handler. It serves the
// catalog editor UI on GET and applies an edit on POST, both against a
// single content type ("text/html") per spec.md §6.
type Handler struct {
	list   *servicelist.List
	logger *logrus.Entry

	// OnCommitFailure, if set, is invoked with the error from a failed
	// Commit (before it is rendered to the page). Used by the CGI entry
	// point to map an SsidTooLong commit failure to a non-zero process
	// exit code per spec.md §6, without the handler itself knowing
	// anything about process exit codes.
	OnCommitFailure func(err error)
}

// New constructs a Handler bound to list.
func New(list *servicelist.List, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{list: list, logger: logger.WithField("component", "cgiwrite")}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch r.Method {
	case http.MethodGet:
		h.serveEditor(w)
	case http.MethodPost:
		h.handleWrite(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprint(w, renderPage(pageData{Error: "method not allowed"}))
	}
}

// serveEditor renders the static HTML UI with the current catalog
// embedded as a JSON script block populating `services`.
func (h *Handler) serveEditor(w http.ResponseWriter) {
	services, err := h.currentServices()
	if err != nil {
		h.logger.WithError(err).Warn("failed to load services for editor page")
		fmt.Fprint(w, renderPage(pageData{Error: "failed to load services"}))
		return
	}
	fmt.Fprint(w, renderPage(pageData{Services: services}))
}

func (h *Handler) currentServices() ([]servicelist.Record, error) {
	handle := h.list.Open()
	defer handle.Close()
	n, err := handle.Count()
	if err != nil {
		return nil, err
	}
	records := make([]servicelist.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := handle.Get(i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// handleWrite implements spec.md §4.4's write algorithm: decode the body,
// then under a fresh handle, RemoveAll, AddLast every parsed record, and
// Commit. ErrSsidTooLong is reported verbatim (an expected input
// validation failure); any other commit failure degrades to a generic
// message.
func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		fmt.Fprint(w, renderPage(pageData{Error: "failed to read request body"}))
		return
	}

	records, err := decodeBody(body)
	if err != nil {
		h.logger.WithError(err).Debug("malformed write request")
		fmt.Fprint(w, renderPage(pageData{Error: "malformed request"}))
		return
	}

	handle := h.list.Open()
	defer handle.Close()

	if err := handle.RemoveAll(); err != nil {
		fmt.Fprint(w, renderPage(pageData{Error: "save failed"}))
		return
	}
	for _, rec := range records {
		err := handle.AddLast(servicelist.Record{
			CatID:    rec.CatID,
			URI:      rec.URI,
			Desc:     rec.Desc,
			LongDesc: rec.LongDesc,
		})
		if err != nil {
			fmt.Fprint(w, renderPage(pageData{Error: "save failed"}))
			return
		}
	}

	if err := handle.Commit(); err != nil {
		if h.OnCommitFailure != nil {
			h.OnCommitFailure(err)
		}
		if errors.Is(err, servicelist.ErrSsidTooLong) {
			fmt.Fprint(w, renderPage(pageData{Error: err.Error()}))
			return
		}
		h.logger.WithError(err).Warn("commit failed")
		fmt.Fprint(w, renderPage(pageData{Error: "save failed"}))
		return
	}

	services, err := h.currentServices()
	if err != nil {
		fmt.Fprint(w, renderPage(pageData{Error: "save succeeded but reload failed"}))
		return
	}
	fmt.Fprint(w, renderPage(pageData{Services: services, Saved: true}))
}

type pageData struct {
	Services []servicelist.Record
	Error    string
	Saved    bool
}

type jsonService struct {
	Position int64   `json:"position"`
	CatID    uint32  `json:"catId"`
	URI      string  `json:"uri"`
	Desc     *string `json:"desc,omitempty"`
	LongDesc *string `json:"longDesc,omitempty"`
	ModTime  int64   `json:"modTime"`
}

var pageTemplate = template.Must(template.New("editor").Parse(`<!DOCTYPE html>
<html>
<head><title>Service catalog</title></head>
<body>
<h1>Service catalog</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Saved}}<p class="ok">Saved.</p>{{end}}
<form method="POST">
<textarea name="serializedServices" rows="10" cols="80"></textarea>
<input type="submit" value="Save">
</form>
<script>
var services = {{.ServicesJSON}};
</script>
</body>
</html>
`))

func renderPage(data pageData) string {
	jsonServices := make([]jsonService, 0, len(data.Services))
	for _, rec := range data.Services {
		jsonServices = append(jsonServices, jsonService{
			Position: rec.Position,
			CatID:    rec.CatID,
			URI:      rec.URI,
			Desc:     rec.Desc,
			LongDesc: rec.LongDesc,
			ModTime:  rec.ModTime,
		})
	}
	encoded, err := json.Marshal(jsonServices)
	if err != nil {
		encoded = []byte("[]")
	}

	var out struct {
		pageData
		ServicesJSON template.JS
	}
	out.pageData = data
	out.ServicesJSON = template.JS(encoded)

	var buf writerBuf
	if err := pageTemplate.Execute(&buf, out); err != nil {
		return "internal error rendering page"
	}
	return buf.String()
}

type writerBuf struct {
	b []byte
}

func (w *writerBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *writerBuf) String() string {
	return string(w.b)
}
