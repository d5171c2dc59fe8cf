package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchEmbed embeds texts in chunks of batchSize on a pool of workers,
// preserving input order. The first error cancels the remaining chunks.
func BatchEmbed(ctx context.Context, e Embedder, texts []string, workers, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		wg.Add(1)
		lo, hi := start, end
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := e.EmbedBatch(ctx, texts[lo:hi])
			if err != nil {
				fail(fmt.Errorf("embed records %d-%d: %w", lo, hi-1, err))
				return
			}
			if len(vecs) != hi-lo {
				fail(fmt.Errorf("embed records %d-%d: got %d vectors", lo, hi-1, len(vecs)))
				return
			}
			copy(out[lo:hi], vecs)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", submitErr))
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
