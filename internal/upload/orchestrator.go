package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/five82/slingshot/internal/slingshot"
)

var (
	// ErrNoTransport is returned by New when Options.Transport is nil.
	ErrNoTransport = errors.New("upload: transport is required")
	// ErrNoFiles is returned by Upload for an empty file list.
	ErrNoFiles = errors.New("upload: no files")
	// ErrInvalidFile is returned by Upload when a file cannot be submitted.
	ErrInvalidFile = errors.New("upload: invalid file")
	// ErrBusy is returned when a batch is still uploading.
	ErrBusy = errors.New("upload: batch in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("upload: orchestrator closed")
	// ErrUnknownFile is returned by Abort for an id not in the current batch.
	ErrUnknownFile = errors.New("upload: unknown file")
	// ErrNotAbortable is returned by Abort when the file already finished.
	ErrNotAbortable = errors.New("upload: file already finished")

	errAbortRequested = errors.New("abort requested")
	errShutdown       = errors.New("orchestrator closed")
)

// Transport is the network contract the orchestrator drives.
// *slingshot.Client implements it.
type Transport interface {
	RequestAuthorization(ctx context.Context, file slingshot.FileDescriptor, meta slingshot.Meta) (slingshot.Authorization, error)
	Upload(ctx context.Context, url string, body io.Reader, size int64, contentType string, onProgress func(int)) error
}

// Options configure an Orchestrator.
type Options struct {
	Transport Transport
	// Meta is attached to every authorization request.
	Meta slingshot.Meta
	// Concurrency bounds in-flight transport calls per phase; zero is unlimited.
	Concurrency int
	// Strict marks a batch failed unless every file ends done.
	Strict bool
	Logger     *slog.Logger
}

// Orchestrator drives batches of files through authorize, upload and a
// terminal state. All record mutations happen on one goroutine that consumes
// requests from a channel; readers get snapshots from the Store.
type Orchestrator struct {
	transport Transport
	meta      slingshot.Meta
	limit     int
	strict    bool
	log       *slog.Logger

	store    *Store
	requests chan request
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once
}

// New validates opts and starts the orchestrator's loop.
func New(opts Options) (*Orchestrator, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if err := opts.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := opts.Concurrency
	if limit < 0 {
		limit = 0
	}

	o := &Orchestrator{
		transport: opts.Transport,
		meta:      opts.Meta.Clone(),
		limit:     limit,
		strict:    opts.Strict,
		log:       logger,
		store:     &Store{},
		requests:  make(chan request),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	m := &machine{
		o:       o,
		status:  StatusIdle,
		records: make(map[string]*Record),
		cancels: make(map[string]context.CancelCauseFunc),
	}
	o.store.publish(m.snapshot())
	go m.run()
	return o, nil
}

// Upload submits files as a new batch and blocks until every file reached a
// terminal status. Per-file failures are recorded in the store, not returned.
func (o *Orchestrator) Upload(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	for i, f := range files {
		if err := f.validate(); err != nil {
			return fmt.Errorf("%w: file %d (%q): %v", ErrInvalidFile, i, f.Name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reply := make(chan startReply, 1)
	if !o.send(startRequest{ctx: ctx, files: files, reply: reply}) {
		return ErrClosed
	}
	batch := <-reply
	if batch.err != nil {
		return batch.err
	}

	o.run(batch)

	finished := make(chan struct{}, 1)
	if !o.send(finishRequest{batch: batch.seq, reply: finished}) {
		return ErrClosed
	}
	<-finished
	return nil
}

// Files returns the current batch's records in insertion order.
func (o *Orchestrator) Files() []Record {
	return o.store.Snapshot().Files
}

// Status returns the overall status.
func (o *Orchestrator) Status() Status {
	return o.store.Snapshot().Status
}

// Snapshot returns the full current state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.store.Snapshot()
}

// Subscribe returns a latest-wins channel of snapshots; see Store.Subscribe.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	return o.store.Subscribe()
}

// OnChange registers a synchronous observer; see Store.OnChange.
func (o *Orchestrator) OnChange(fn func(Snapshot)) func() {
	return o.store.OnChange(fn)
}

// Abort cancels the in-flight work of one file. The file is marked aborted
// immediately; its siblings are not affected.
func (o *Orchestrator) Abort(id string) error {
	reply := make(chan error, 1)
	if !o.send(abortRequest{id: id, reply: reply}) {
		return ErrClosed
	}
	return <-reply
}

// Clear drops the records of a finished batch and returns to idle.
func (o *Orchestrator) Clear() error {
	reply := make(chan error, 1)
	if !o.send(clearRequest{reply: reply}) {
		return ErrClosed
	}
	return <-reply
}

// Close aborts in-flight files, fails a running batch and stops the loop.
func (o *Orchestrator) Close() error {
	o.closing.Do(func() { close(o.quit) })
	<-o.done
	return nil
}

func (o *Orchestrator) send(req request) bool {
	select {
	case o.requests <- req:
		return true
	case <-o.done:
		return false
	}
}

// emit reports a worker event and returns whether it was applied.
func (o *Orchestrator) emit(ev fileEvent) bool {
	reply := make(chan bool, 1)
	if !o.send(eventRequest{ev: ev, reply: reply}) {
		return false
	}
	return <-reply
}

type job struct {
	id   string
	file File
	ctx  context.Context
}

// run executes both phases of a batch. Phase two starts only after every
// authorization settled.
func (o *Orchestrator) run(b startReply) {
	grants := make([]slingshot.Authorization, len(b.jobs))
	accepted := make([]bool, len(b.jobs))

	var auth errgroup.Group
	if o.limit > 0 {
		auth.SetLimit(o.limit)
	}
	for i, j := range b.jobs {
		auth.Go(func() error {
			grants[i], accepted[i] = o.authorize(b.seq, j)
			return nil
		})
	}
	_ = auth.Wait()

	var transfers errgroup.Group
	if o.limit > 0 {
		transfers.SetLimit(o.limit)
	}
	for i, j := range b.jobs {
		if !accepted[i] {
			continue
		}
		transfers.Go(func() error {
			o.transfer(b.seq, j, grants[i])
			return nil
		})
	}
	_ = transfers.Wait()
}

func (o *Orchestrator) authorize(seq int, j job) (slingshot.Authorization, bool) {
	auth, err := o.transport.RequestAuthorization(j.ctx, j.file.descriptor(), o.meta)
	switch {
	case err == nil:
		applied := o.emit(fileEvent{kind: evAuthorized, batch: seq, id: j.id, auth: auth})
		return auth, applied && auth.Key != "" && auth.URL != ""
	case j.ctx.Err() != nil:
		o.emit(fileEvent{kind: evAborted, batch: seq, id: j.id, err: context.Cause(j.ctx)})
	default:
		o.log.Warn("authorization rejected", "file", j.file.Name, "id", j.id, "error", err)
		o.emit(fileEvent{kind: evAuthFailed, batch: seq, id: j.id, err: err})
	}
	return slingshot.Authorization{}, false
}

func (o *Orchestrator) transfer(seq int, j job, grant slingshot.Authorization) {
	if j.ctx.Err() != nil {
		o.emit(fileEvent{kind: evAborted, batch: seq, id: j.id, err: context.Cause(j.ctx)})
		return
	}
	if !o.emit(fileEvent{kind: evUploadStarted, batch: seq, id: j.id}) {
		return
	}

	body, err := j.file.Open()
	if err != nil {
		o.emit(fileEvent{kind: evUploadFailed, batch: seq, id: j.id, err: fmt.Errorf("open %s: %w", j.file.Name, err)})
		return
	}
	defer func() { _ = body.Close() }()

	err = o.transport.Upload(j.ctx, grant.URL, body, j.file.Size, j.file.Type, func(p int) {
		o.emit(fileEvent{kind: evProgress, batch: seq, id: j.id, progress: p})
	})
	switch {
	case err == nil:
		o.emit(fileEvent{kind: evUploaded, batch: seq, id: j.id})
	case j.ctx.Err() != nil:
		o.emit(fileEvent{kind: evAborted, batch: seq, id: j.id, err: context.Cause(j.ctx)})
	default:
		o.log.Warn("upload failed", "file", j.file.Name, "id", j.id, "key", grant.Key, "error", err)
		o.emit(fileEvent{kind: evUploadFailed, batch: seq, id: j.id, err: err})
	}
}

// Requests handled by the loop goroutine.

type request interface{ isRequest() }

type startRequest struct {
	ctx   context.Context
	files []File
	reply chan startReply
}

type startReply struct {
	seq  int
	jobs []job
	err  error
}

type finishRequest struct {
	batch int
	reply chan struct{}
}

type eventRequest struct {
	ev    fileEvent
	reply chan bool
}

type abortRequest struct {
	id    string
	reply chan error
}

type clearRequest struct {
	reply chan error
}

func (startRequest) isRequest()  {}
func (finishRequest) isRequest() {}
func (eventRequest) isRequest()  {}
func (abortRequest) isRequest()  {}
func (clearRequest) isRequest()  {}

// machine is the loop-owned state. Only machine.run and the methods it calls
// touch these fields.
type machine struct {
	o       *Orchestrator
	seq     int
	status  Status
	order   []string
	records map[string]*Record
	cancels map[string]context.CancelCauseFunc
}

func (m *machine) run() {
	defer close(m.o.done)
	for {
		select {
		case req := <-m.o.requests:
			m.handle(req)
		case <-m.o.quit:
			m.shutdown()
			return
		}
	}
}

func (m *machine) handle(req request) {
	switch r := req.(type) {
	case startRequest:
		r.reply <- m.start(r.ctx, r.files)
	case eventRequest:
		r.reply <- m.apply(r.ev)
	case finishRequest:
		m.finish(r.batch)
		r.reply <- struct{}{}
	case abortRequest:
		r.reply <- m.abort(r.id)
	case clearRequest:
		r.reply <- m.clear()
	}
}

func (m *machine) start(ctx context.Context, files []File) startReply {
	if m.status == StatusUploading {
		return startReply{err: ErrBusy}
	}

	m.seq++
	m.status = StatusUploading
	m.order = make([]string, 0, len(files))
	m.records = make(map[string]*Record, len(files))
	m.cancels = make(map[string]context.CancelCauseFunc, len(files))

	jobs := make([]job, 0, len(files))
	for _, f := range files {
		id := uuid.NewString()
		rec := newRecord(id, f)
		fileCtx, cancel := context.WithCancelCause(ctx)
		m.order = append(m.order, id)
		m.records[id] = &rec
		m.cancels[id] = cancel
		jobs = append(jobs, job{id: id, file: f, ctx: fileCtx})
	}

	m.o.log.Info("batch started", "batch", m.seq, "files", len(files))
	m.publish()
	return startReply{seq: m.seq, jobs: jobs}
}

func (m *machine) apply(ev fileEvent) bool {
	if ev.batch != m.seq {
		return false
	}
	rec, ok := m.records[ev.id]
	if !ok {
		return false
	}
	next, err := transition(*rec, ev)
	if err != nil {
		m.o.log.Debug("event ignored", "id", ev.id, "file", rec.Name, "error", err)
		return false
	}
	*rec = next
	if next.Terminal() {
		m.release(ev.id)
	}
	if ev.kind != evProgress {
		m.o.log.Debug("file transition", "id", ev.id, "file", rec.Name, "status", next.Status)
	}
	m.publish()
	return true
}

func (m *machine) finish(batch int) {
	if batch != m.seq || m.status != StatusUploading {
		return
	}
	m.status = StatusDone
	if m.o.strict {
		for _, id := range m.order {
			if m.records[id].Status != FileDone {
				m.status = StatusFailed
				break
			}
		}
	}
	for id := range m.cancels {
		m.release(id)
	}
	m.o.log.Info("batch finished", "batch", m.seq, "status", m.status, "files", len(m.order))
	m.publish()
}

func (m *machine) abort(id string) error {
	rec, ok := m.records[id]
	if !ok {
		return ErrUnknownFile
	}
	if rec.Terminal() {
		return ErrNotAbortable
	}
	if cancel, ok := m.cancels[id]; ok {
		cancel(errAbortRequested)
	}
	m.apply(fileEvent{kind: evAborted, batch: m.seq, id: id, err: errAbortRequested})
	m.o.log.Info("file aborted", "id", id, "file", rec.Name)
	return nil
}

func (m *machine) clear() error {
	if m.status == StatusUploading {
		return ErrBusy
	}
	m.status = StatusIdle
	m.order = nil
	m.records = make(map[string]*Record)
	m.publish()
	return nil
}

func (m *machine) shutdown() {
	changed := false
	for _, id := range m.order {
		rec := m.records[id]
		if rec.Terminal() {
			continue
		}
		if cancel, ok := m.cancels[id]; ok {
			cancel(errShutdown)
		}
		if next, err := transition(*rec, fileEvent{kind: evAborted, id: id, err: errShutdown}); err == nil {
			*rec = next
			changed = true
		}
	}
	for id := range m.cancels {
		m.release(id)
	}
	if m.status == StatusUploading {
		m.status = StatusFailed
		changed = true
	}
	if changed {
		m.o.log.Warn("orchestrator closed mid-batch", "batch", m.seq)
		m.publish()
	}
}

func (m *machine) release(id string) {
	if cancel, ok := m.cancels[id]; ok {
		cancel(nil)
		delete(m.cancels, id)
	}
}

func (m *machine) snapshot() Snapshot {
	files := make([]Record, 0, len(m.order))
	for _, id := range m.order {
		files = append(files, *m.records[id])
	}
	return Snapshot{Batch: m.seq, Status: m.status, Files: files}
}

func (m *machine) publish() {
	m.o.store.publish(m.snapshot())
}
