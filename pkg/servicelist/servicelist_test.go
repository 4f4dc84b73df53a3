package servicelist

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdebeacon/sdebeacon/internal/wifi"
)

func newTestStore(t *testing.T) (*List, wifi.Binding) {
	t.Helper()
	dir := t.TempDir()
	binding, err := wifi.NewBinding("virtual", "")
	require.NoError(t, err)
	list, err := OpenStore(filepath.Join(dir, "services.db"), binding, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { list.Close() })
	return list, binding
}

func strp(s string) *string { return &s }

func TestEmptyListProducesBareSSID(t *testing.T) {
	list, binding := newTestStore(t)

	h := list.Open()
	defer h.Close()
	require.NoError(t, h.Commit())

	ssid, err := binding.GetSSID()
	require.NoError(t, err)
	assert.Equal(t, "##", string(ssid))
}

func TestThreeServicesBuildOrderedSSID(t *testing.T) {
	list, binding := newTestStore(t)

	h := list.Open()
	defer h.Close()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a", Desc: strp("a")}))
	require.NoError(t, h.AddLast(Record{CatID: 2, URI: "http://b", Desc: strp("b")}))
	require.NoError(t, h.AddLast(Record{CatID: 3, URI: "http://c"}))
	require.NoError(t, h.Commit())

	ssid, err := binding.GetSSID()
	require.NoError(t, err)
	assert.Equal(t, "##^1,a^2,b^3", string(ssid))

	h2 := list.Open()
	defer h2.Close()
	n, err := h2.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNoOpEditPreservesModTime(t *testing.T) {
	list, _ := newTestStore(t)

	h := list.Open()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a"}))
	require.NoError(t, h.Commit())
	h.Close()

	h2 := list.Open()
	rec, err := h2.Get(0)
	require.NoError(t, err)
	originalModTime := rec.ModTime

	// Replace-then-replace-back nets to a no-op.
	require.NoError(t, h2.Replace(Record{CatID: 99, URI: "http://temp"}, 0))
	require.NoError(t, h2.Replace(Record{CatID: 1, URI: "http://a"}, 0))
	require.NoError(t, h2.Commit())
	h2.Close()

	h3 := list.Open()
	defer h3.Close()
	rec2, err := h3.Get(0)
	require.NoError(t, err)
	assert.Equal(t, originalModTime, rec2.ModTime)
}

func TestChangedEditUpdatesModTime(t *testing.T) {
	list, _ := newTestStore(t)

	h := list.Open()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a"}))
	require.NoError(t, h.Commit())
	h.Close()

	h2 := list.Open()
	rec, err := h2.Get(0)
	require.NoError(t, err)
	originalModTime := rec.ModTime

	require.NoError(t, h2.Replace(Record{CatID: 2, URI: "http://b"}, 0))
	require.NoError(t, h2.Commit())
	h2.Close()

	h3 := list.Open()
	defer h3.Close()
	rec2, err := h3.Get(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec2.ModTime, originalModTime)
	assert.Equal(t, uint32(2), rec2.CatID)
}

func TestSsidTooLongRollsBackNothing(t *testing.T) {
	list, binding := newTestStore(t)

	h := list.Open()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a", Desc: strp("a")}))
	require.NoError(t, h.Commit())
	h.Close()

	before, err := binding.GetSSID()
	require.NoError(t, err)

	h2 := list.Open()
	defer h2.Close()
	longDesc := strings.Repeat("x", 64)
	require.NoError(t, h2.AddLast(Record{CatID: 2, URI: "http://b", Desc: &longDesc}))
	err = h2.Commit()
	require.True(t, errors.Is(err, ErrSsidTooLong))

	after, err := binding.GetSSID()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	h3 := list.Open()
	defer h3.Close()
	n, err := h3.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestShadowIsolationBetweenHandles(t *testing.T) {
	list, _ := newTestStore(t)

	h1 := list.Open()
	defer h1.Close()
	require.NoError(t, h1.AddLast(Record{CatID: 1, URI: "http://a"}))

	h2 := list.Open()
	defer h2.Close()
	n, err := h2.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "uncommitted writes on h1 must not be visible via h2")

	// Count alone does not create a shadow; Get does, even out of range.
	_, err = h2.Get(0)
	require.True(t, errors.Is(err, ErrIndexOutOfRange))

	require.NoError(t, h1.Commit())

	n2, err := h2.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n2, "h2's shadow, once created, does not see h1's later commit")
}

func TestInsertShiftsPositionsContiguously(t *testing.T) {
	list, _ := newTestStore(t)

	h := list.Open()
	defer h.Close()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a"}))
	require.NoError(t, h.AddLast(Record{CatID: 2, URI: "http://b"}))
	require.NoError(t, h.AddFirst(Record{CatID: 0, URI: "http://z"}))
	require.NoError(t, h.Commit())

	h2 := list.Open()
	defer h2.Close()
	rec0, err := h2.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), rec0.CatID)
	rec1, err := h2.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rec1.CatID)
	rec2, err := h2.Get(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rec2.CatID)
}

func TestRemoveCompactsPositions(t *testing.T) {
	list, _ := newTestStore(t)

	h := list.Open()
	require.NoError(t, h.AddLast(Record{CatID: 1, URI: "http://a"}))
	require.NoError(t, h.AddLast(Record{CatID: 2, URI: "http://b"}))
	require.NoError(t, h.AddLast(Record{CatID: 3, URI: "http://c"}))
	require.NoError(t, h.Commit())
	h.Close()

	h2 := list.Open()
	require.NoError(t, h2.Remove(0))
	require.NoError(t, h2.Commit())
	h2.Close()

	h3 := list.Open()
	defer h3.Close()
	n, err := h3.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	rec0, err := h3.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rec0.CatID)
	assert.Equal(t, int64(0), rec0.Position)
}

func TestRequiresURI(t *testing.T) {
	list, _ := newTestStore(t)
	h := list.Open()
	defer h.Close()
	err := h.AddLast(Record{CatID: 1})
	assert.True(t, errors.Is(err, ErrURIRequired))
}

func TestCountDoesNotTriggerShadowOnItsOwn(t *testing.T) {
	list, _ := newTestStore(t)

	h := list.Open()
	defer h.Close()
	n, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, h.hasShadow)
}
