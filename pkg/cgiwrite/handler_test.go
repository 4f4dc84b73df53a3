package cgiwrite

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdebeacon/sdebeacon/internal/wifi"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	binding, err := wifi.NewBinding("virtual", "")
	require.NoError(t, err)
	list, err := servicelist.OpenStore(filepath.Join(t.TempDir(), "services.db"), binding, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { list.Close() })
	return New(list, logrus.NewEntry(logrus.New()))
}

func TestServeEditorGet(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "services =")
}

func TestHandleWritePublishesRecords(t *testing.T) {
	h := newTestHandler(t)
	body := bodyPrefix + "1:0:" + "7:8:http://a" + "4:1:3"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Saved")

	services, err := h.currentServices()
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "http://a", services[0].URI)
	assert.Equal(t, uint32(3), services[0].CatID)
}

func TestHandleWriteMalformedBody(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("garbage"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "malformed request")
}

func TestHandleWriteSsidTooLongReportsVerbatimAndCallsHook(t *testing.T) {
	h := newTestHandler(t)
	var hookErr error
	h.OnCommitFailure = func(err error) { hookErr = err }

	longDesc := strings.Repeat("x", 64)
	body := bodyPrefix + "1:0:" + "7:8:http://a" + "5:" + itoa(len(longDesc)) + ":" + longDesc
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "ssid would exceed")
	require.Error(t, hookErr)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
