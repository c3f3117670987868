package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/mediaconv/internal/jobs"
)

func TestConcurrency_MultipleWriters(t *testing.T) {
	store := newTestStore(t)

	// 10 goroutines × 30 ops each, the way concurrent conversions record history
	numWorkers := 10
	opsPerWorker := 30

	var wg sync.WaitGroup
	errs := make(chan error, numWorkers*opsPerWorker)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				job := createTestJob(fmt.Sprintf("w%d-j%d", workerID, i), time.Now())
				if err := store.SaveJob(job); err != nil {
					errs <- fmt.Errorf("worker %d job %d: %w", workerID, i, err)
					return
				}
				job.Status = jobs.StatusComplete
				if err := store.SaveJob(job); err != nil {
					errs <- fmt.Errorf("worker %d job %d finish: %w", workerID, i, err)
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	expected := numWorkers * opsPerWorker
	if stats.Total != expected || stats.Complete != expected {
		t.Errorf("expected %d complete jobs, got %+v", expected, stats)
	}
}

func TestConcurrency_ReadWhileWriting(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < 100; i++ {
			if err := store.SaveJob(createTestJob(fmt.Sprintf("j%d", i), time.Now())); err != nil {
				t.Errorf("write %d: %v", i, err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, err := store.ListJobs(10); err != nil {
					t.Errorf("read: %v", err)
					return
				}
			}
		}
	}()

	wg.Wait()
}
