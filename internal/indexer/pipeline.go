package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"research-backend/internal/chunker"
	"research-backend/internal/contextutil"
	"research-backend/internal/extract"
	"research-backend/internal/llm"
	"research-backend/internal/service"
	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

// Notifier delivers progress events to a client. *notify.Hub implements it.
type Notifier interface {
	Send(ctx context.Context, clientID string, event any)
}

// Pipeline turns uploaded files and web pages into indexed chunks.
// Batches run one at a time: the pipeline is the index's only writer.
type Pipeline struct {
	mu sync.Mutex

	index     *vectorstore.Index
	embedder  llm.Embedder
	extractor extract.Extractor
	fetcher   extract.Fetcher
	notifier  Notifier
	mirror    vectorstore.Mirror
	batches   storage.BatchStore

	chunkSize    int
	chunkOverlap int

	now    func() time.Time
	lastTS int64
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	index *vectorstore.Index,
	embedder llm.Embedder,
	extractor extract.Extractor,
	fetcher extract.Fetcher,
	notifier Notifier,
	chunkSize, chunkOverlap int,
) *Pipeline {
	return &Pipeline{
		index:        index,
		embedder:     embedder,
		extractor:    extractor,
		fetcher:      fetcher,
		notifier:     notifier,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		now:          time.Now,
	}
}

// SetMirror enables replication of every added batch to m.
func (p *Pipeline) SetMirror(m vectorstore.Mirror) {
	p.mirror = m
}

// SetLedger enables recording of every batch in s.
func (p *Pipeline) SetLedger(s storage.BatchStore) {
	p.batches = s
}

// IngestFiles extracts, chunks, embeds and indexes files in order.
// A file whose text cannot be extracted is reported with file_error and
// skipped. Chunking, embedding, index and save failures abort the batch.
func (p *Pipeline) IngestFiles(ctx context.Context, clientID string, files []FileItem) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	b := p.begin(storage.KindFiles, clientID, len(files))

	for _, f := range files {
		p.notify(ctx, clientID, Event{Event: EventFileStart, File: f.Name})

		st := extract.Classify(f.Name)
		text, err := p.extractor.Extract(ctx, f.Name, f.Data, st)
		if err != nil {
			logger.WarnContext(ctx, "failed to extract file", "file", f.Name, "type", st.String(), "error", err)
			p.notify(ctx, clientID, Event{Event: EventFileError, File: f.Name, Error: err.Error()})
			continue
		}

		chunks, err := p.chunk(text, st)
		if err != nil {
			return 0, p.abort(ctx, b, fmt.Errorf("failed to chunk %s: %w", f.Name, err))
		}

		title := f.Name
		source := b.ids.source(f.Name)
		n, err := p.store(ctx, b, chunks, func(i int) vectorstore.Record {
			return vectorstore.Record{Title: vectorstore.StringPtr(title), ChunkID: b.ids.chunkID(source, i)}
		})
		if err != nil {
			return 0, p.abort(ctx, b, fmt.Errorf("failed to index %s: %w", f.Name, err))
		}

		logger.InfoContext(ctx, "indexed file", "file", f.Name, "type", st.String(), "chunks", n)
		p.notify(ctx, clientID, Event{Event: EventFileDone, File: f.Name, Added: added(n)})
	}

	return p.finish(ctx, b)
}

// IngestURLs fetches, chunks, embeds and indexes web pages in order.
// A page that cannot be fetched or has no text is reported with url_error
// and skipped.
func (p *Pipeline) IngestURLs(ctx context.Context, clientID string, urls []string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	b := p.begin(storage.KindURLs, clientID, len(urls))

	for _, u := range urls {
		p.notify(ctx, clientID, Event{Event: EventURLStart, URL: u})

		text, err := p.fetcher.Fetch(ctx, u)
		if err == nil && strings.TrimSpace(text) == "" {
			err = extract.ErrNoText
		}
		if err != nil {
			logger.WarnContext(ctx, "failed to fetch url", "url", u, "error", err)
			p.notify(ctx, clientID, Event{Event: EventURLError, URL: u, Error: err.Error()})
			continue
		}

		chunks, err := p.chunk(text, extract.URL)
		if err != nil {
			return 0, p.abort(ctx, b, fmt.Errorf("failed to chunk %s: %w", u, err))
		}

		pageURL := u
		source := b.ids.source("url")
		n, err := p.store(ctx, b, chunks, func(i int) vectorstore.Record {
			return vectorstore.Record{URL: vectorstore.StringPtr(pageURL), ChunkID: b.ids.chunkID(source, i)}
		})
		if err != nil {
			return 0, p.abort(ctx, b, fmt.Errorf("failed to index %s: %w", u, err))
		}

		logger.InfoContext(ctx, "indexed url", "url", u, "chunks", n)
		p.notify(ctx, clientID, Event{Event: EventURLDone, URL: u, Added: added(n)})
	}

	return p.finish(ctx, b)
}

func (p *Pipeline) chunk(text string, st extract.SourceType) ([]string, error) {
	if st == extract.Tabular {
		return chunker.SplitRows(strings.NewReader(text))
	}
	return chunker.Split(text, p.chunkSize, p.chunkOverlap)
}

// store embeds chunks and stages them in the batch. record builds the
// metadata for chunk i; its Text is filled in here. Nothing reaches the
// index until finish commits the whole batch.
func (p *Pipeline) store(ctx context.Context, b *batch, chunks []string, record func(i int) vectorstore.Record) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to generate embeddings: %w", service.ErrExternalService, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
	}

	want := b.dim
	if want == 0 {
		want = p.index.Dim()
	}
	for i, v := range vectors {
		if want == 0 {
			want = len(v)
		}
		if len(v) != want || want == 0 {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", vectorstore.ErrDimensionMismatch, i, len(v), want)
		}
	}
	b.dim = want

	for i, c := range chunks {
		r := record(i)
		r.Text = c
		b.records = append(b.records, r)
	}
	b.vectors = append(b.vectors, vectors...)
	b.added += len(chunks)
	b.lengths = append(b.lengths, chunkLengths(chunks)...)

	return len(chunks), nil
}

func (p *Pipeline) notify(ctx context.Context, clientID string, e Event) {
	if p.notifier == nil || clientID == "" {
		return
	}
	p.notifier.Send(ctx, clientID, e)
}

// batch tracks one IngestFiles or IngestURLs call and holds its staged
// vectors until commit.
type batch struct {
	record  storage.Batch
	ids     *chunkIDs
	added   int
	lengths []int

	dim     int
	vectors [][]float32
	records []vectorstore.Record
}

func (p *Pipeline) begin(kind, clientID string, items int) *batch {
	started := p.now()
	ts := started.UnixMilli()
	if ts <= p.lastTS {
		ts = p.lastTS + 1
	}
	p.lastTS = ts

	return &batch{
		record: storage.Batch{
			Kind:      kind,
			ClientID:  clientID,
			Items:     items,
			StartedAt: started,
		},
		ids: newChunkIDs(ts),
	}
}

// finish commits the staged batch with a single Add, so searches see the
// index either before or after the batch, then saves and mirrors it.
func (p *Pipeline) finish(ctx context.Context, b *batch) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.index.Add(b.vectors, b.records); err != nil {
		return 0, p.abort(ctx, b, fmt.Errorf("failed to add batch: %w", err))
	}
	if err := p.index.Save(); err != nil {
		return 0, p.abort(ctx, b, fmt.Errorf("failed to save index: %w", err))
	}

	if p.mirror != nil && len(b.records) > 0 {
		if err := p.mirror.Upsert(ctx, b.vectors, b.records); err != nil {
			logger.WarnContext(ctx, "mirror upsert failed", "count", len(b.records), "error", err)
		}
	}

	p.notify(ctx, b.record.ClientID, Event{Event: EventIngestDone, Added: added(b.added)})

	b.record.Status = storage.StatusOK
	p.recordBatch(ctx, b)

	logger.InfoContext(ctx, "ingestion completed",
		"kind", b.record.Kind, "items", b.record.Items, "added", b.added, "total", p.index.Len())
	return b.added, nil
}

// abort records a failed batch and returns err unchanged.
func (p *Pipeline) abort(ctx context.Context, b *batch, err error) error {
	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "ingestion aborted", "kind", b.record.Kind, "error", err)
	b.record.Status = storage.StatusFailed
	b.record.Error = err.Error()
	p.recordBatch(ctx, b)
	return err
}

func (p *Pipeline) recordBatch(ctx context.Context, b *batch) {
	if p.batches == nil {
		return
	}
	b.record.Added = b.added
	b.record.ChunkStats = computeChunkStats(b.lengths)
	b.record.FinishedAt = p.now()
	if err := p.batches.Insert(ctx, &b.record); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to record batch", "error", err)
	}
}

// chunkIDs builds "{source}_{ts}_{i}" ids. A source already issued within
// the batch gets the first free "-2", "-3"... suffix so ids stay unique.
type chunkIDs struct {
	ts     int64
	issued map[string]bool
}

func newChunkIDs(ts int64) *chunkIDs {
	return &chunkIDs{ts: ts, issued: make(map[string]bool)}
}

func (c *chunkIDs) source(name string) string {
	source := name
	for n := 2; c.issued[source]; n++ {
		source = fmt.Sprintf("%s-%d", name, n)
	}
	c.issued[source] = true
	return source
}

func (c *chunkIDs) chunkID(source string, i int) string {
	return fmt.Sprintf("%s_%d_%d", source, c.ts, i)
}
