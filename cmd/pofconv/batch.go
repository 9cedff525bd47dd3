package main

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/pofconv/pkg/convert"
	"github.com/Faultbox/pofconv/pkg/vp"
)

// job converts one model, either a loose file or an archive entry.
type job struct {
	Input string
	Run   func() (*convert.Result, error)
}

// outcome is the result of one job.
type outcome struct {
	Input  string
	Result *convert.Result
	Err    error
}

// errOutputTaken is returned by a job whose outputs would overwrite those
// of an earlier job in the same batch.
var errOutputTaken = errors.New("output already written by another input")

// outputs tracks the output stem of every planned job, so that the first
// input in command-line order owns each pair of output files.
type outputs map[string]string

// claim records input as the owner of dir/name and returns the earlier
// owner, if any. Keys fold case for case-insensitive filesystems.
func (o outputs) claim(dir, name, input string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	key := strings.ToLower(filepath.Join(filepath.Clean(dir), stem))
	if owner, ok := o[key]; ok {
		return owner, true
	}
	o[key] = input
	return "", false
}

// taken returns a job that fails without writing anything.
func taken(input, owner string) job {
	return job{Input: input, Run: func() (*convert.Result, error) {
		return nil, fmt.Errorf("%w: %s", errOutputTaken, owner)
	}}
}

// planJobs turns command-line inputs into jobs. Every .pof entry of a .vp
// input becomes its own job; the returned archives must stay open until
// the jobs have run. A job whose outputs collide with an earlier job's
// fails instead of overwriting them.
func planJobs(inputs []string, opts convert.Options) ([]job, []*vp.Archive, error) {
	var jobs []job
	var archives []*vp.Archive
	claimed := make(outputs)
	for _, input := range inputs {
		input := input
		if !strings.EqualFold(filepath.Ext(input), ".vp") {
			dir := opts.OutputDir
			if dir == "" {
				dir = filepath.Dir(input)
			}
			if owner, dup := claimed.claim(dir, input, input); dup {
				jobs = append(jobs, taken(input, owner))
				continue
			}
			jobs = append(jobs, job{Input: input, Run: func() (*convert.Result, error) {
				return convert.Convert(input, opts)
			}})
			continue
		}

		archive, err := vp.Open(input)
		if err != nil {
			closeAll(archives)
			return nil, nil, fmt.Errorf("%s: %w", input, err)
		}
		archives = append(archives, archive)

		base := opts.OutputDir
		if base == "" {
			base = filepath.Dir(input)
		}
		for _, name := range archive.ListExt(".pof") {
			name := name
			// Entries keep their archive directory below the output root.
			entryOpts := opts
			entryOpts.OutputDir = filepath.Join(base, filepath.FromSlash(path.Dir(name)))
			entry := input + ":" + name
			if owner, dup := claimed.claim(entryOpts.OutputDir, name, entry); dup {
				jobs = append(jobs, taken(entry, owner))
				continue
			}
			jobs = append(jobs, job{Input: entry, Run: func() (*convert.Result, error) {
				if !filepath.IsLocal(filepath.FromSlash(name)) {
					return nil, fmt.Errorf("entry %q escapes the output directory", name)
				}
				data, err := archive.Read(name)
				if err != nil {
					return nil, err
				}
				return convert.ConvertData(name, data, entryOpts)
			}})
		}
	}
	return jobs, archives, nil
}

func closeAll(archives []*vp.Archive) {
	for _, a := range archives {
		a.Close()
	}
}

// runBatch runs jobs with a fixed number of workers. Outcomes are returned
// in job order.
func runBatch(jobs []job, workers int) []outcome {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]outcome, len(jobs))
	itemChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				res, err := jobs[idx].Run()
				results[idx] = outcome{Input: jobs[idx].Input, Result: res, Err: err}
			}
		}()
	}

	for i := range jobs {
		itemChan <- i
	}
	close(itemChan)

	wg.Wait()
	return results
}
