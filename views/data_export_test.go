package views

import (
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"drive-logger/models"
)

func TestRepairTrailingRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.csv")

	require.NoError(t, os.WriteFile(path, []byte("img,a\nx.jpg,1\ny.jp"), 0644))
	repaired, err := RepairTrailingRow(path)
	require.NoError(t, err)
	assert.True(t, repaired)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "img,a\nx.jpg,1\n", string(data))

	repaired, err = RepairTrailingRow(path)
	require.NoError(t, err)
	assert.False(t, repaired)

	_, err = RepairTrailingRow(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVWriterLazyHeaderAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	header := []string{"img", "a", "b"}

	w, err := OpenCSVWriter(path, 0, header)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, _ := os.ReadFile(path)
	assert.Empty(t, data, "header written without rows")

	w, err = OpenCSVWriter(path, 0, header)
	require.NoError(t, err)
	w.WriteRow([]string{"1.jpg", "1", "2"})
	require.NoError(t, w.Close())

	w, err = OpenCSVWriter(path, 0, header)
	require.NoError(t, err)
	w.WriteRow([]string{"2.jpg", "3", "4"})
	assert.Equal(t, uint64(1), w.Rows())
	require.NoError(t, w.Close())

	data, _ = os.ReadFile(path)
	assert.Equal(t, "img,a,b\n1.jpg,1,2\n2.jpg,3,4\n", string(data))
}

func TestCSVWriterHeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte("img,a\nx,1\n"), 0644))

	_, err := OpenCSVWriter(path, 0, []string{"img", "a", "b"})
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestCSVWriterRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	w, err := OpenCSVWriter(path, 1024, DatasetColumns)
	require.NoError(t, err)

	row := &models.DatasetRow{Image: "abc_1.jpg", State: models.NewControllerState([models.NumSignals]int{}).With(models.SignalWheelAxis, -5)}
	w.WriteRecord(row)
	w.WriteRow([]string{"short", "1"})
	require.NoError(t, w.Close())

	st, err := InspectDataset(path)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, 1, st.Malformed)

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.True(t, strings.HasPrefix(lines[1], "abc_1.jpg,-5,0,"))
}

func testFrame(at time.Time) *models.Frame {
	w, h := 6, 3
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i * 7)
	}
	return &models.Frame{Width: w, Height: h, Pix: pix, CapturedAt: at}
}

func TestImageWriterFormats(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 123456789, time.UTC)
	stamp := func(t time.Time) string { return t.Format("150405.000000000") }

	decoders := map[string]func(*os.File) error{
		"jpg":  func(f *os.File) error { _, err := jpeg.Decode(f); return err },
		"png":  func(f *os.File) error { _, err := png.Decode(f); return err },
		"bmp":  func(f *os.File) error { _, err := bmp.Decode(f); return err },
		"tiff": func(f *os.File) error { _, err := tiff.Decode(f); return err },
	}
	for ext, decode := range decoders {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			w, err := NewImageWriter(dir, ext, 90)
			require.NoError(t, err)

			name, err := w.Write("run", testFrame(at), stamp)
			require.NoError(t, err)
			assert.Equal(t, "run_140506.123456789."+ext, name)

			f, err := os.Open(filepath.Join(dir, name))
			require.NoError(t, err)
			defer f.Close()
			assert.NoError(t, decode(f))
		})
	}
}

func TestImageWriterNameCollision(t *testing.T) {
	dir := t.TempDir()
	w, err := NewImageWriter(dir, "png", 0)
	require.NoError(t, err)
	at := time.Unix(1700000000, 0)
	stamp := func(t time.Time) string { return t.Format("150405.000000") }

	a, err := w.Write("r", testFrame(at), stamp)
	require.NoError(t, err)
	b, err := w.Write("r", testFrame(at), stamp)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestImageWriterRejects(t *testing.T) {
	_, err := NewImageWriter(t.TempDir(), "gif", 90)
	assert.Error(t, err)

	w, err := NewImageWriter(t.TempDir(), "png", 90)
	require.NoError(t, err)
	bad := testFrame(time.Now())
	bad.Pix = bad.Pix[:4]
	_, err = w.Write("r", bad, func(time.Time) string { return "x" })
	assert.Error(t, err)
}
