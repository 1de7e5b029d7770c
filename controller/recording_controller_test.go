package controller

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-logger/models"
	"drive-logger/utils"
)

func testStorageConfig(t *testing.T, workers int) *utils.Config {
	t.Helper()
	cfg := utils.DefaultConfig()
	dir := t.TempDir()
	cfg.Storage.DataDir = dir
	cfg.Storage.ImgDir = filepath.Join(dir, "img")
	cfg.Storage.ImgExt = "png"
	cfg.Storage.Workers = workers
	cfg.Storage.QueueSize = 16
	cfg.Capture.Source = "synthetic"
	cfg.Controller.Source = "none"
	require.NoError(t, cfg.Validate())
	return cfg
}

func testSample(seq int, base time.Time) *models.Sample {
	w, h := 8, 4
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(seq + i)
	}
	state := models.NewControllerState([models.NumSignals]int{}).
		With(models.SignalWheelAxis, seq-50)
	return &models.Sample{
		Seq:   uint64(seq),
		Frame: &models.Frame{FrameID: uint64(seq), Width: w, Height: h, Pix: pix, CapturedAt: base.Add(time.Duration(seq) * time.Millisecond)},
		State: state,
	}
}

func readDataset(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRecordingControllerEndToEnd(t *testing.T) {
	cfg := testStorageConfig(t, 3)
	rc, err := NewRecordingController(cfg, "run00001")
	require.NoError(t, err)
	rc.Start()

	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, rc.Submit(ctx, testSample(i, base)))
	}
	require.NoError(t, rc.Stop())

	records := readDataset(t, rc.DatasetPath())
	require.Len(t, records, 101)
	assert.Equal(t, models.DatasetRow{}.CSVHeader(), records[0])

	names := map[string]bool{}
	for _, row := range records[1:] {
		require.Len(t, row, models.NumColumns)
		assert.FileExists(t, filepath.Join(cfg.Storage.ImgDir, row[0]))
		assert.Regexp(t, `^run00001_\d{4}(_\d+){6}\.png$`, row[0])
		names[row[0]] = true
	}
	assert.Len(t, names, 100)

	st := rc.Stats()
	assert.Equal(t, uint64(100), st.Submitted)
	assert.Equal(t, uint64(100), st.RowsWritten)
	assert.Zero(t, st.Dropped)
}

func TestRecordingControllerStopIsFinal(t *testing.T) {
	cfg := testStorageConfig(t, 1)
	rc, err := NewRecordingController(cfg, "run00002")
	require.NoError(t, err)
	rc.Start()

	require.NoError(t, rc.Stop())
	require.NoError(t, rc.Stop())
	assert.ErrorIs(t, rc.Submit(context.Background(), testSample(0, time.Now())), ErrRecorderStopped)
}

func TestRecordingControllerDropsUnencodableFrame(t *testing.T) {
	cfg := testStorageConfig(t, 2)
	rc, err := NewRecordingController(cfg, "run00003")
	require.NoError(t, err)
	rc.Start()

	ctx := context.Background()
	base := time.Now()
	bad := testSample(1, base)
	bad.Frame.Pix = bad.Frame.Pix[:5]
	require.NoError(t, rc.Submit(ctx, testSample(0, base)))
	require.NoError(t, rc.Submit(ctx, bad))
	require.NoError(t, rc.Stop())

	records := readDataset(t, rc.DatasetPath())
	assert.Len(t, records, 2)
	assert.Equal(t, uint64(1), rc.Stats().Dropped)
}

func TestRecordingControllerResumesRun(t *testing.T) {
	cfg := testStorageConfig(t, 2)
	base := time.Now()

	for run := 0; run < 2; run++ {
		rc, err := NewRecordingController(cfg, "run00004")
		require.NoError(t, err)
		rc.Start()
		for i := 0; i < 5; i++ {
			require.NoError(t, rc.Submit(context.Background(), testSample(run*10+i, base)))
		}
		require.NoError(t, rc.Stop())
	}

	path := filepath.Join(cfg.Storage.DataDir, "run00004.csv")
	records := readDataset(t, path)
	require.Len(t, records, 11)
	for _, row := range records[1:] {
		assert.NotEqual(t, "img", row[0])
	}
}

func TestRecordingControllerRepairsCrashedRun(t *testing.T) {
	cfg := testStorageConfig(t, 1)
	path := filepath.Join(cfg.Storage.DataDir, "run00005.csv")

	header := models.DatasetRow{}.CSVHeader()
	content := ""
	for i, h := range header {
		if i > 0 {
			content += ","
		}
		content += h
	}
	content += "\nrun00005_a.png,1,2,3"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rc, err := NewRecordingController(cfg, "run00005")
	require.NoError(t, err)
	rc.Start()
	require.NoError(t, rc.Submit(context.Background(), testSample(0, time.Now())))
	require.NoError(t, rc.Stop())

	records := readDataset(t, path)
	require.Len(t, records, 2)
	assert.Len(t, records[1], models.NumColumns)
}
