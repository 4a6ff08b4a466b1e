package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/logging"
	"github.com/ay01sec/labor-admin-sub000/internal/metrics"
	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrNoFile          = errors.New("no file provided")
	ErrNothingToImport = errors.New("no valid rows to import")
	ErrImportCancelled = errors.New("import cancelled")
	ErrImportNotFound  = errors.New("import session not found")
	ErrAlreadyStarted  = errors.New("import already started")
	ErrNotAdmin        = errors.New("administrator privileges required")
	ErrNotStarted      = errors.New("import session has not started")
)

// Defaults applied by NewService to zero Options fields.
const (
	DefaultMaxFileSize = 10 << 20
	DefaultTimeout     = 10 * time.Minute
	DefaultSessionTTL  = 30 * time.Minute
	DefaultResultTTL   = 5 * time.Minute
)

// Options tunes a Service.
type Options struct {
	ChunkSize     int
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration // bound on one write phase
	SessionTTL    time.Duration // validated sessions never started are dropped after this
	ResultTTL     time.Duration // finished sessions are kept this long
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = DefaultResultTTL
	}
	return o
}

// SessionState is the lifecycle position of an import session.
type SessionState string

const (
	StateValidated SessionState = "validated"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// Finished reports whether the write phase has ended.
func (s SessionState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Session is a snapshot of an import session.
type Session struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	CompanyID  string            `json:"companyId"`
	FileName   string            `json:"fileName"`
	Encoding   Encoding          `json:"encoding"`
	State      SessionState      `json:"state"`
	Validation *ValidationResult `json:"validation"`
	Progress   Progress          `json:"progress"`
	Result     *ImportResult     `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	StartedAt  time.Time         `json:"startedAt,omitzero"`
	FinishedAt time.Time         `json:"finishedAt,omitzero"`
}

type importSession struct {
	cfg ImportConfig

	mu        sync.Mutex
	snap      Session
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []chan Progress
	expiry    *time.Timer

	// cancelPending is set by Cancel while Start waits for a slot.
	cancelPending bool
}

func (s *importSession) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *importSession) notifyProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Progress = p
	for _, ch := range s.listeners {
		select {
		case ch <- p:
		default:
			// Slow subscriber, drop the update.
		}
	}
}

func (s *importSession) closeListeners() {
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

// Service runs two-phase imports: Validate parses a file and keeps the
// classification in a session, Start writes it in the background.
type Service struct {
	store    store.Store
	registry *Registry
	opts     Options
	limiter  *ImportLimiter
	importer *Importer
	newID    func() string
	now      Clock

	mu       sync.RWMutex
	sessions map[string]*importSession
	running  sync.WaitGroup
}

// NewService creates a Service over st serving the configs in reg.
func NewService(st store.Store, reg *Registry, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:    st,
		registry: reg,
		opts:     opts,
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		importer: NewImporter(st, opts.ChunkSize),
		newID:    uuid.NewString,
		now:      time.Now,
		sessions: make(map[string]*importSession),
	}
}

// Entities returns the registered import configs.
func (s *Service) Entities() []ImportConfig {
	return s.registry.All()
}

// Limiter exposes the concurrency limiter for health reporting.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Template returns the CSV template of an entity.
func (s *Service) Template(entity string) ([]byte, error) {
	cfg, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	return Template(cfg), nil
}

// Export renders an entity's stored records of the actor's company as CSV.
// Only administrators may export.
func (s *Service) Export(ctx context.Context, actor Actor, entity string) ([]byte, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	cfg, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, store.CompanyCollection(actor.CompanyID(), cfg.Collection))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", entity, err)
	}
	return ExportRecords(cfg, docs), nil
}

// History lists past imports of an entity for the actor's company.
func (s *Service) History(ctx context.Context, actor Actor, entity string) ([]HistoryEntry, error) {
	if _, err := s.registry.Lookup(entity); err != nil {
		return nil, err
	}
	return ListHistory(ctx, s.store, actor.CompanyID(), entity)
}

// analyze runs the validate phase for one file.
func (s *Service) analyze(ctx context.Context, actor Actor, cfg ImportConfig, data []byte) (*ValidationResult, Encoding, error) {
	if !actor.IsAdmin() {
		return nil, "", ErrNotAdmin
	}
	if len(data) == 0 {
		return nil, "", ErrNoFile
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, "", fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}

	text, enc := Decode(data)
	header, rows, err := ParseRows(text)
	if err != nil {
		return nil, enc, err
	}

	lk, err := s.loadLookups(ctx, actor.CompanyID(), cfg)
	if err != nil {
		return nil, enc, err
	}

	res := Classify(rows, header, cfg, lk)
	metrics.RecordValidation(cfg.Key, res.NewCount, res.UpdateCount, res.ErrorCount)
	return res, enc, nil
}

func (s *Service) loadLookups(ctx context.Context, companyID string, cfg ImportConfig) (Lookups, error) {
	var lk Lookups
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		idx, err := LoadExistingIndex(gctx, s.store, store.CompanyCollection(companyID, cfg.Collection), cfg.IdentifierField)
		lk.Existing = idx
		return err
	})
	if ref := cfg.Reference; ref != nil {
		g.Go(func() error {
			idx, err := LoadReferenceIndex(gctx, s.store, store.CompanyCollection(companyID, ref.Collection), *ref)
			lk.References = idx
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	return lk, nil
}

// Validate parses and classifies a file and keeps the outcome in a new
// session. The session is dropped after SessionTTL unless started.
func (s *Service) Validate(ctx context.Context, actor Actor, entity, fileName string, data []byte) (*Session, error) {
	cfg, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	res, enc, err := s.analyze(ctx, actor, cfg, data)
	if err != nil {
		return nil, err
	}

	sess := &importSession{
		cfg: cfg,
		snap: Session{
			ID:         s.newID(),
			Entity:     cfg.Key,
			CompanyID:  actor.CompanyID(),
			FileName:   fileName,
			Encoding:   enc,
			State:      StateValidated,
			Validation: res,
			Progress:   Progress{Total: len(res.ValidRows)},
			CreatedAt:  s.now(),
		},
		done: make(chan struct{}),
	}
	id := sess.snap.ID
	sess.expiry = time.AfterFunc(s.opts.SessionTTL, func() { s.expire(id) })

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	logging.ForImport(ctx, id, cfg.Key, actor.CompanyID()).Info("import validated",
		"file", fileName,
		"encoding", enc,
		"total", res.TotalCount,
		"new", res.NewCount,
		"updates", res.UpdateCount,
		"errors", res.ErrorCount,
	)

	snap := sess.snapshot()
	return &snap, nil
}

func (s *Service) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.snap.State == StateValidated {
		sess.snap.State = StateCancelled
		sess.closeListeners()
		close(sess.done)
		delete(s.sessions, id)
	}
}

// lookup finds a session owned by the actor's company. Sessions of other
// companies are reported as not found.
func (s *Service) lookup(actor Actor, id string) (*importSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.snap.CompanyID != actor.CompanyID() {
		return nil, ErrImportNotFound
	}
	return sess, nil
}

// Get returns a snapshot of a session.
func (s *Service) Get(actor Actor, id string) (*Session, error) {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	snap := sess.snapshot()
	return &snap, nil
}

// Start begins the write phase of a validated session in the background.
// It waits up to MaxWait for a free import slot.
func (s *Service) Start(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrNotAdmin
	}
	sess, err := s.lookup(actor, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.snap.State != StateValidated {
		sess.mu.Unlock()
		return ErrAlreadyStarted
	}
	if len(sess.snap.Validation.ValidRows) == 0 {
		sess.mu.Unlock()
		return ErrNothingToImport
	}
	// Claim the session before waiting for a slot so a concurrent Start fails.
	sess.snap.State = StateRunning
	sess.expiry.Stop()
	sess.mu.Unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		sess.mu.Lock()
		cancelled := sess.cancelPending
		if cancelled {
			sess.snap.State = StateCancelled
			sess.closeListeners()
			close(sess.done)
		} else {
			sess.snap.State = StateValidated
			sess.expiry.Reset(s.opts.SessionTTL)
		}
		sess.mu.Unlock()
		if cancelled {
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
		}
		return err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	log := logging.ForImport(ctx, id, sess.cfg.Key, actor.CompanyID())

	sess.mu.Lock()
	sess.cancel = cancel
	sess.snap.StartedAt = s.now()
	if sess.cancelPending {
		cancel()
	}
	sess.mu.Unlock()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error("import panicked", "panic", r)
				s.finish(sess, nil, fmt.Errorf("panic: %v", r), log)
			}
		}()

		log.Info("import started", "rows", len(sess.snap.Validation.ValidRows))
		coll := store.CompanyCollection(sess.snap.CompanyID, sess.cfg.Collection)
		res, err := s.importer.Run(runCtx, coll, sess.snap.Validation.ValidRows, sess.cfg, sess.notifyProgress)
		s.finish(sess, res, err, log)
	}()
	return nil
}

// finish records the outcome of a write phase and releases subscribers.
func (s *Service) finish(sess *importSession, res *ImportResult, runErr error, log *slog.Logger) {
	sess.mu.Lock()
	if sess.snap.State.Finished() {
		sess.mu.Unlock()
		return
	}
	sess.snap.FinishedAt = s.now()
	sess.snap.Result = res
	switch {
	case runErr != nil:
		sess.snap.State = StateFailed
		sess.snap.Error = runErr.Error()
	case res.Cancelled:
		sess.snap.State = StateCancelled
	default:
		sess.snap.State = StateCompleted
	}
	snap := sess.snap
	sess.closeListeners()
	close(sess.done)
	sess.mu.Unlock()

	metrics.RecordImport(snap.Entity, string(snap.State), snap.FinishedAt.Sub(snap.StartedAt))
	if res != nil {
		log.Info("import finished",
			"state", snap.State,
			"success", res.SuccessCount,
			"created", len(res.CreatedIDs),
			"updated", len(res.UpdatedIDs),
			"failed", len(res.FailedRows),
			"duration", snap.FinishedAt.Sub(snap.StartedAt),
		)
	} else {
		log.Error("import failed", "error", runErr)
	}

	histCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := RecordHistory(histCtx, s.store, snap.CompanyID, historyOf(snap)); err != nil {
		log.Warn("failed to record import history", "error", err)
	}

	time.AfterFunc(s.opts.ResultTTL, func() {
		s.mu.Lock()
		delete(s.sessions, snap.ID)
		s.mu.Unlock()
	})
}

func historyOf(snap Session) HistoryEntry {
	h := HistoryEntry{
		ID:         snap.ID,
		Entity:     snap.Entity,
		FileName:   snap.FileName,
		Encoding:   string(snap.Encoding),
		Status:     string(snap.State),
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
	}
	if v := snap.Validation; v != nil {
		h.TotalRows = v.TotalCount
		h.ErrorCount = v.ErrorCount
	}
	if r := snap.Result; r != nil {
		h.CreatedCount = len(r.CreatedIDs)
		h.UpdatedCount = len(r.UpdatedIDs)
		h.FailedCount = len(r.FailedRows)
	}
	return h
}

// SubscribeProgress returns a channel receiving the current progress
// immediately and after every chunk. It is closed when the write phase ends.
func (s *Service) SubscribeProgress(actor Actor, id string) (<-chan Progress, error) {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	ch <- sess.snap.Progress
	if sess.snap.State.Finished() {
		close(ch)
		return ch, nil
	}
	sess.listeners = append(sess.listeners, ch)
	return ch, nil
}

// Cancel stops a running import after its current chunk. A session still
// waiting for an import slot is cancelled as soon as it gets one. Cancelling
// a session that has not started discards it.
func (s *Service) Cancel(actor Actor, id string) error {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	state := sess.snap.State
	if state == StateRunning {
		if sess.cancel != nil {
			sess.cancel()
		} else {
			// Start is still waiting for a slot.
			sess.cancelPending = true
		}
	}
	sess.mu.Unlock()

	if state == StateValidated {
		return s.Discard(actor, id)
	}
	return nil
}

// Discard drops a session whose write phase has not started.
func (s *Service) Discard(actor Actor, id string) error {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	switch sess.snap.State {
	case StateRunning:
		sess.mu.Unlock()
		return ErrAlreadyStarted
	case StateValidated:
		// Mark it so a Start racing with this Discard fails.
		sess.snap.State = StateCancelled
		sess.closeListeners()
		close(sess.done)
	}
	sess.expiry.Stop()
	sess.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Result waits for the write phase to end and returns its result.
func (s *Service) Result(ctx context.Context, actor Actor, id string) (*ImportResult, error) {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	state := sess.snap.State
	sess.mu.Unlock()
	if state == StateValidated {
		return nil, ErrNotStarted
	}

	select {
	case <-sess.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	snap := sess.snapshot()
	if snap.Result == nil {
		return nil, fmt.Errorf("import %s failed: %s", id, snap.Error)
	}
	return snap.Result, nil
}

// ErrorReport renders the session's validation errors and, once written,
// its failed rows.
func (s *Service) ErrorReport(actor Actor, id string) ([]byte, error) {
	sess, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	snap := sess.snapshot()

	var failures []FailedRow
	if snap.Result != nil {
		failures = snap.Result.FailedRows
	}
	return ErrorReport(sess.cfg, snap.Validation.ErrorRows, failures), nil
}

// RunReport is the outcome of a synchronous import.
type RunReport struct {
	Encoding   Encoding          `json:"encoding"`
	Validation *ValidationResult `json:"validation"`
	Result     *ImportResult     `json:"result,omitempty"` // nil on a dry run
}

// Run validates and, unless dryRun is set, writes a file in the caller's
// goroutine. It shares the concurrency limit with background imports.
func (s *Service) Run(ctx context.Context, actor Actor, entity, fileName string, data []byte, dryRun bool, onProgress ProgressFunc) (*RunReport, error) {
	cfg, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	res, enc, err := s.analyze(ctx, actor, cfg, data)
	if err != nil {
		return nil, err
	}
	report := &RunReport{Encoding: enc, Validation: res}
	if dryRun || len(res.ValidRows) == 0 {
		return report, nil
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return report, err
	}
	defer s.limiter.Release()

	id := s.newID()
	log := logging.ForImport(ctx, id, cfg.Key, actor.CompanyID())
	started := s.now()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	out, err := s.importer.Run(runCtx, store.CompanyCollection(actor.CompanyID(), cfg.Collection), res.ValidRows, cfg, onProgress)
	if err != nil {
		metrics.RecordImport(cfg.Key, string(StateFailed), s.now().Sub(started))
		return report, err
	}
	report.Result = out

	state := StateCompleted
	if out.Cancelled {
		state = StateCancelled
	}
	finished := s.now()
	metrics.RecordImport(cfg.Key, string(state), finished.Sub(started))

	entry := historyOf(Session{
		ID: id, Entity: cfg.Key, FileName: fileName, Encoding: enc, State: state,
		Validation: res, Result: out, StartedAt: started, FinishedAt: finished,
	})
	if err := RecordHistory(context.WithoutCancel(ctx), s.store, actor.CompanyID(), entry); err != nil {
		log.Warn("failed to record import history", "error", err)
	}
	log.Info("import finished", "state", state, "success", out.SuccessCount, "failed", len(out.FailedRows))
	return report, nil
}

// WaitForImports blocks until background imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels every running import, used at shutdown when
// WaitForImports times out.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.cancel != nil && sess.snap.State == StateRunning {
			sess.cancel()
		}
		sess.mu.Unlock()
	}
}
