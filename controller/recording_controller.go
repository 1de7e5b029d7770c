package controller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"drive-logger/models"
	"drive-logger/utils"
	"drive-logger/views"
)

// ErrRecorderStopped is returned by Submit after Stop.
var ErrRecorderStopped = errors.New("recording controller stopped")

// RecordingController is the final pipeline stage.
//
//	Submit ──► ingress queue ──► N workers (encode image) ──► row queue ──► writer (dataset CSV)
//
// Rows reach the file in writer-arrival order, which can differ from capture
// order when several workers run. Shutdown is sentinel based: every worker and
// then the writer receives a nil item, so nothing is abandoned mid-row.
type RecordingController struct {
	runID   string
	images  *views.ImageWriter
	dataset *views.CSVWriter
	workers int
	flush   time.Duration

	in         chan *models.Sample
	rows       chan *models.DatasetRow
	workerWG   sync.WaitGroup
	writerDone chan struct{}

	mu      sync.RWMutex
	stopped bool

	submitted   uint64
	imagesSaved uint64
	dropped     uint64
	rowsWritten uint64
}

// NewRecordingController opens the run's dataset file (appending when the run
// id already has one) and prepares the image writer.
func NewRecordingController(cfg *utils.Config, runID string) (*RecordingController, error) {
	st := cfg.Storage

	images, err := views.NewImageWriter(st.ImgDir, st.ImgExt, st.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("image writer: %w", err)
	}

	path := filepath.Join(st.DataDir, runID+".csv")
	dataset, err := views.OpenCSVWriter(path, st.CSV.BufferSizeKB*1024, models.DatasetRow{}.CSVHeader())
	if err != nil {
		return nil, fmt.Errorf("dataset writer: %w", err)
	}

	workers := st.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	flushMs := st.CSV.FlushIntervalMs
	if flushMs <= 0 {
		flushMs = 100
	}

	rc := &RecordingController{
		runID:      runID,
		images:     images,
		dataset:    dataset,
		workers:    workers,
		flush:      time.Duration(flushMs) * time.Millisecond,
		in:         make(chan *models.Sample, st.QueueSize),
		rows:       make(chan *models.DatasetRow, st.QueueSize),
		writerDone: make(chan struct{}),
	}
	utils.L().Info("recording controller ready  (run=%s, dataset=%s, images=%s, workers=%d)",
		runID, path, st.ImgDir, workers)
	return rc, nil
}

// Start launches the workers and the writer.
func (rc *RecordingController) Start() {
	for i := 0; i < rc.workers; i++ {
		rc.workerWG.Add(1)
		go rc.work(i)
	}
	go rc.write()
	utils.L().Info("recording controller started")
}

// Submit hands a sample to the worker pool, blocking while the ingress queue
// is full.
func (rc *RecordingController) Submit(ctx context.Context, s *models.Sample) error {
	if s == nil {
		return errors.New("nil sample")
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.stopped {
		return ErrRecorderStopped
	}
	select {
	case rc.in <- s:
		atomic.AddUint64(&rc.submitted, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rc *RecordingController) work(id int) {
	defer rc.workerWG.Done()
	for {
		s := <-rc.in
		if s == nil {
			utils.L().Debug("worker %d: stop sentinel", id)
			return
		}

		name, err := rc.images.Write(rc.runID, s.Frame, utils.ImageTimestamp)
		if err != nil {
			// No image, no row.
			atomic.AddUint64(&rc.dropped, 1)
			utils.L().Error("worker %d: sample %d dropped: %v", id, s.Seq, err)
			continue
		}
		atomic.AddUint64(&rc.imagesSaved, 1)
		rc.rows <- &models.DatasetRow{Seq: s.Seq, Image: name, State: s.State}
	}
}

func (rc *RecordingController) write() {
	defer close(rc.writerDone)

	ticker := time.NewTicker(rc.flush)
	defer ticker.Stop()

	for {
		select {
		case row := <-rc.rows:
			if row == nil {
				return
			}
			rc.dataset.WriteRecord(row)
			atomic.AddUint64(&rc.rowsWritten, 1)
		case <-ticker.C:
			if err := rc.dataset.Flush(); err != nil {
				utils.L().Error("dataset flush: %v", err)
			}
		}
	}
}

// Stop drains the pipeline: one sentinel per worker, wait for the workers,
// one sentinel for the writer, wait for it, close the file and repair a
// truncated tail if one is found. Safe to call more than once.
func (rc *RecordingController) Stop() error {
	rc.mu.Lock()
	if rc.stopped {
		rc.mu.Unlock()
		return nil
	}
	rc.stopped = true
	rc.mu.Unlock()

	for i := 0; i < rc.workers; i++ {
		rc.in <- nil
	}
	rc.workerWG.Wait()

	rc.rows <- nil
	<-rc.writerDone

	err := rc.dataset.Close()
	repaired, rerr := views.RepairTrailingRow(rc.dataset.Path())
	if rerr != nil && err == nil {
		err = rerr
	}
	if repaired {
		utils.L().Warn("dataset %s: dropped truncated trailing row", rc.dataset.Path())
	}

	utils.L().Info("recording controller stopped  (rows_written=%d, dropped=%d, dataset=%s)",
		atomic.LoadUint64(&rc.rowsWritten), atomic.LoadUint64(&rc.dropped), rc.dataset.Path())
	return err
}

// RunID returns the run this controller records into.
func (rc *RecordingController) RunID() string { return rc.runID }

// DatasetPath returns the dataset CSV path.
func (rc *RecordingController) DatasetPath() string { return rc.dataset.Path() }

// ImageDir returns the directory images are written to.
func (rc *RecordingController) ImageDir() string { return rc.images.Dir() }

// RecordingStats is a point-in-time view of the recorder counters.
type RecordingStats struct {
	Submitted   uint64
	ImagesSaved uint64
	Dropped     uint64
	RowsWritten uint64
	Queued      int
}

func (rc *RecordingController) Stats() RecordingStats {
	return RecordingStats{
		Submitted:   atomic.LoadUint64(&rc.submitted),
		ImagesSaved: atomic.LoadUint64(&rc.imagesSaved),
		Dropped:     atomic.LoadUint64(&rc.dropped),
		RowsWritten: atomic.LoadUint64(&rc.rowsWritten),
		Queued:      len(rc.in),
	}
}
