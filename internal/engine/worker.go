package engine

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/events"
	"fluxdl/internal/httpclient"
	"fluxdl/internal/model"
)

// job is one chunk worker's fixed view of a download run, shared
// read-only across every worker goroutine spawned for it.
type job struct {
	downloadID  string
	url         string
	filepath    string
	chunkSize   int64
	totalSize   int64
	totalChunks int64
	generation  uint32

	client  *http.Client
	queue   *model.ChunkQueue
	retries *model.RetryCounts
	control *model.ControlBlock
	sink    events.Sink
	hosts   *HostTracker
}

// runWorker leases chunk indices from the queue until it's drained
// and every chunk is accounted for, the control signal turns
// non-run, or its generation goes stale (the download was resumed
// out from under it, handing the work to a fresh worker set). Each
// worker opens a private file descriptor and writes with WriteAt, so
// concurrent workers never contend on a shared cursor.
func runWorker(j *job) error {
	f, err := os.OpenFile(j.filepath, os.O_WRONLY, 0644)
	if err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to open output file for writing", err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)

	for {
		if !j.control.ShouldContinue() {
			return nil
		}

		idx, ok := j.queue.PopFront()
		if !ok {
			if j.control.CompletedCount() >= int(j.totalChunks) {
				return nil
			}
			time.Sleep(queuePollInterval)
			continue
		}

		retryCount := j.retries.Increment(idx)
		enforceSpeed := retryCount < adaptiveRetryThreshold

		start, end := model.ChunkRange(idx, j.chunkSize, j.totalSize)
		done := false

		for attempt := 1; attempt <= chunkRetryLimit && !done; attempt++ {
			if !j.control.ShouldContinue() {
				return nil
			}
			if j.control.Generation.Load() != j.generation {
				return nil
			}

			attemptStart := time.Now()
			ok := downloadChunk(j.client, f, j.url, start, end, enforceSpeed, j.control, buf)
			if j.hosts != nil {
				j.hosts.RecordOutcome(hostOf(j.url), time.Since(attemptStart), !ok)
			}

			if ok {
				done = true
				n := end - start + 1
				j.control.DownloadedBytes.Add(n)
				j.control.AppendCompleted(idx)
				j.sink.Emit(events.Event{
					DownloadID: j.downloadID,
					Kind:       events.Progress,
					Bytes:      j.control.DownloadedBytes.Load(),
				})
				break
			}

			if !j.control.ShouldContinue() {
				return nil
			}
			time.Sleep(time.Duration(attempt) * retryBackoffUnit)
		}

		if !done && j.control.ShouldContinue() {
			j.queue.PushBack(idx)
		}
	}
}

// downloadChunk performs one GET Range attempt for [start, end] and
// streams the response directly into f at the matching offset. It
// returns true only if the full expected byte count was written.
func downloadChunk(client *http.Client, f *os.File, url string, start, end int64, enforceSpeed bool, control *model.ControlBlock, buf []byte) bool {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", httpclient.GenericUserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return false
	}

	expected := end - start + 1
	offset := start
	var written int64
	attemptStart := time.Now()

	for {
		if !control.ShouldContinue() {
			return false
		}

		if enforceSpeed {
			elapsed := time.Since(attemptStart)
			if elapsed > speedEnforcementDelay {
				speedKBs := (float64(written) / 1024.0) / elapsed.Seconds()
				if speedKBs < speedEnforcementThresholdKBs {
					return false
				}
			}
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.WriteAt(buf[:n], offset); writeErr != nil {
				return false
			}
			offset += int64(n)
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return false
		}
	}

	return written == expected
}

// hostOf extracts the host for diagnostic bucketing; an unparsable URL
// (shouldn't happen, it already passed an HTTP probe) buckets under the
// raw string rather than panicking.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
