// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statemachine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
)

type fanOutJob struct {
	id  string
	run func(ctx context.Context) error
}

type fanOutResult struct {
	id  string
	err error
}

// fanOut runs jobs on a bounded set of workers pulling from a shared queue. Every job gets its
// own timeout, a job that fails or times out doesn't stop the others. It returns once every job
// has settled.
type fanOut struct {
	q       *deque.Deque[fanOutJob]
	timeout time.Duration

	results []fanOutResult

	WaitGroup sync.WaitGroup
	sync.Mutex
}

func runFanOut(ctx context.Context, workers int, timeout time.Duration, jobs []fanOutJob) []fanOutResult {
	if len(jobs) == 0 {
		return nil
	}
	q := &deque.Deque[fanOutJob]{}
	q.Grow(len(jobs))
	for _, j := range jobs {
		q.PushBack(j)
	}
	f := &fanOut{
		q:       q,
		timeout: timeout,
		results: make([]fanOutResult, 0, len(jobs)),
	}

	n := min(max(workers, 1), len(jobs))
	f.WaitGroup.Add(n)
	for range n {
		go f.worker(ctx)
	}
	f.WaitGroup.Wait()
	return f.results
}

func (f *fanOut) next() (fanOutJob, bool) {
	f.Lock()
	defer f.Unlock()
	if f.q.Len() == 0 {
		return fanOutJob{}, false
	}
	return f.q.PopFront(), true
}

func (f *fanOut) record(id string, err error) {
	f.Lock()
	defer f.Unlock()
	f.results = append(f.results, fanOutResult{id: id, err: err})
}

func (f *fanOut) worker(ctx context.Context) {
	defer f.WaitGroup.Done()
	for {
		job, ok := f.next()
		if !ok {
			return
		}
		jobCtx, logger := logging.InjectLabels(ctx, "child_id", job.id)
		err := f.runOne(jobCtx, job)
		if err != nil {
			logger.Warn("Child operation failed", "err", err)
		}
		f.record(job.id, err)
	}
}

// runOne stops waiting at the timeout even if the job ignores its context. The job keeps running
// in the background in that case, its outcome is no longer counted.
func (f *fanOut) runOne(ctx context.Context, job fanOutJob) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("child operation panicked: %v", r)
			}
		}()
		done <- job.run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("child operation timed out after %s: %w", f.timeout, ctx.Err())
	}
}

func summarise(results []fanOutResult) (succeeded int, failures map[string]error) {
	failures = map[string]error{}
	for _, r := range results {
		if r.err != nil {
			failures[r.id] = r.err
			continue
		}
		succeeded++
	}
	return succeeded, failures
}
