package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

var (
	admin      = StaticActor{Company: "co1", Admin: true}
	viewer     = StaticActor{Company: "co1"}
	otherAdmin = StaticActor{Company: "co2", Admin: true}
)

func newTestService(st store.Store, opts Options) *Service {
	return NewService(st, testRegistry(), opts)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}

func resultOf(t *testing.T, svc *Service, actor Actor, id string) *ImportResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := svc.Result(ctx, actor, id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	return res
}

// ============================================================================
// Validate
// ============================================================================

func TestService_Validate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Set(ctx, store.CompanyCollection("co1", "employees"), "existing", map[string]any{"employeeCode": "E0002"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	svc := newTestService(st, Options{})

	data := append(employeeCSV(3), "E0004,,\n"...)
	sess, err := svc.Validate(ctx, admin, "employee", "社員.csv", data)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if sess.State != StateValidated {
		t.Errorf("State = %q, want %q", sess.State, StateValidated)
	}
	v := sess.Validation
	if v.NewCount != 2 || v.UpdateCount != 1 || v.ErrorCount != 1 || v.TotalCount != 4 {
		t.Errorf("counts new=%d update=%d error=%d total=%d, want 2/1/1/4", v.NewCount, v.UpdateCount, v.ErrorCount, v.TotalCount)
	}
	if sess.Encoding != EncodingUTF8 {
		t.Errorf("Encoding = %q, want %q", sess.Encoding, EncodingUTF8)
	}
	if sess.Progress.Total != 3 {
		t.Errorf("Progress.Total = %d, want 3", sess.Progress.Total)
	}

	got, err := svc.Get(admin, sess.ID)
	if err != nil || got.ID != sess.ID {
		t.Errorf("Get() = %v, %v, want session %s", got, err, sess.ID)
	}
	if _, err := svc.Get(otherAdmin, sess.ID); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("Get() from another company error = %v, want ErrImportNotFound", err)
	}
}

func TestService_ValidateRejects(t *testing.T) {
	svc := newTestService(store.NewMemory(), Options{MaxFileSize: 64})

	tests := []struct {
		name    string
		actor   Actor
		entity  string
		data    []byte
		wantErr error
	}{
		{"not admin", viewer, "employee", employeeCSV(1), ErrNotAdmin},
		{"unknown entity", admin, "invoice", employeeCSV(1), ErrUnknownEntity},
		{"empty file", admin, "employee", nil, ErrNoFile},
		{"too large", admin, "employee", employeeCSV(10), ErrFileTooLarge},
		{"header only", admin, "employee", []byte("社員番号,氏\n"), ErrNoDataRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tt.actor, tt.entity, "x.csv", tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_ValidateLookupFailure(t *testing.T) {
	svc := newTestService(queryErrorStore{store.NewMemory()}, Options{})

	_, err := svc.Validate(context.Background(), admin, "employee", "x.csv", employeeCSV(1))
	if err == nil {
		t.Fatal("Validate() expected error when the store is unreachable")
	}
	if got := MapError(err).Code; got != "STO003" {
		t.Errorf("MapError().Code = %q, want STO003", got)
	}
}

func TestService_SessionExpires(t *testing.T) {
	svc := newTestService(store.NewMemory(), Options{SessionTTL: 20 * time.Millisecond})

	sess, err := svc.Validate(context.Background(), admin, "employee", "x.csv", employeeCSV(1))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := svc.Get(admin, sess.ID); errors.Is(err, ErrImportNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("session did not expire")
}

// ============================================================================
// Start / Result
// ============================================================================

func TestService_StartWritesRows(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(st, Options{ChunkSize: 2})

	sess, err := svc.Validate(ctx, admin, "employee", "社員.csv", employeeCSV(5))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := svc.Start(ctx, admin, sess.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	res := resultOf(t, svc, admin, sess.ID)
	if res.SuccessCount != 5 || len(res.CreatedIDs) != 5 {
		t.Errorf("SuccessCount = %d, created = %d, want 5", res.SuccessCount, len(res.CreatedIDs))
	}
	if n := st.Len(store.CompanyCollection("co1", "employees")); n != 5 {
		t.Errorf("stored = %d, want 5", n)
	}

	got, _ := svc.Get(admin, sess.ID)
	if got.State != StateCompleted || got.Progress != (Progress{5, 5}) {
		t.Errorf("session = %s %+v, want completed at 5/5", got.State, got.Progress)
	}

	// A finished session replays its final progress and closes.
	ch, err := svc.SubscribeProgress(admin, sess.ID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}
	if p := <-ch; p != (Progress{5, 5}) {
		t.Errorf("first progress = %+v, want 5/5", p)
	}
	if _, open := <-ch; open {
		t.Error("progress channel still open after completion")
	}

	if err := svc.WaitForImports(ctx); err != nil {
		t.Errorf("WaitForImports() error = %v", err)
	}
	hist, err := svc.History(ctx, admin, "employee")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 1 || hist[0].ID != sess.ID || hist[0].CreatedCount != 5 || hist[0].Status != string(StateCompleted) {
		t.Errorf("History() = %+v, want one completed entry for %s", hist, sess.ID)
	}
}

func TestService_StartTwice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(1))
	if err := svc.Start(ctx, admin, sess.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := svc.Start(ctx, admin, sess.ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	resultOf(t, svc, admin, sess.ID)
}

func TestService_StartNothingToImport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, err := svc.Validate(ctx, admin, "employee", "x.csv", []byte("社員番号,氏\n,山田\n"))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := svc.Start(ctx, admin, sess.ID); !errors.Is(err, ErrNothingToImport) {
		t.Errorf("Start() error = %v, want ErrNothingToImport", err)
	}
	if _, err := svc.Result(ctx, admin, sess.ID); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Result() error = %v, want ErrNotStarted", err)
	}
}

func TestService_StartRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(1))
	if err := svc.Start(ctx, viewer, sess.ID); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("Start() error = %v, want ErrNotAdmin", err)
	}
	if err := svc.Start(ctx, otherAdmin, sess.ID); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("Start() from another company error = %v, want ErrImportNotFound", err)
	}
}

func TestService_CancelRunning(t *testing.T) {
	ctx := context.Background()
	st := newBlockingStore()
	svc := newTestService(st, Options{ChunkSize: 1})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(3))
	if err := svc.Start(ctx, admin, sess.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitClosed(t, st.started)

	if err := svc.Discard(admin, sess.ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Discard() of a running import error = %v, want ErrAlreadyStarted", err)
	}
	if err := svc.Cancel(admin, sess.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	close(st.release)

	res := resultOf(t, svc, admin, sess.ID)
	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if res.SuccessCount != 1 || len(res.FailedRows) != 2 {
		t.Errorf("success = %d, failed = %d, want 1/2", res.SuccessCount, len(res.FailedRows))
	}
	got, _ := svc.Get(admin, sess.ID)
	if got.State != StateCancelled {
		t.Errorf("State = %q, want %q", got.State, StateCancelled)
	}
	if want := (Progress{Current: 3, Total: 3}); got.Progress != want {
		t.Errorf("Progress = %+v, want %+v", got.Progress, want)
	}
}

func TestService_CancelWhileWaitingForSlot(t *testing.T) {
	ctx := context.Background()
	st := newBlockingStore()
	svc := newTestService(st, Options{MaxConcurrent: 1, MaxWait: 5 * time.Second})

	first, _ := svc.Validate(ctx, admin, "employee", "a.csv", employeeCSV(1))
	second, _ := svc.Validate(ctx, admin, "employee", "b.csv", employeeCSV(2))
	if err := svc.Start(ctx, admin, first.ID); err != nil {
		t.Fatalf("Start(first) error = %v", err)
	}
	waitClosed(t, st.started)

	startErr := make(chan error, 1)
	go func() { startErr <- svc.Start(ctx, admin, second.ID) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, _ := svc.Get(admin, second.ID); got != nil && got.State == StateRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second import never claimed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := svc.Cancel(admin, second.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	close(st.release)
	if err := <-startErr; err != nil {
		t.Fatalf("Start(second) error = %v", err)
	}

	res := resultOf(t, svc, admin, second.ID)
	if !res.Cancelled || res.SuccessCount != 0 || len(res.FailedRows) != 2 {
		t.Errorf("result cancelled=%v success=%d failed=%d, want true/0/2", res.Cancelled, res.SuccessCount, len(res.FailedRows))
	}
	if n := st.Len(store.CompanyCollection("co1", "employees")); n != 1 {
		t.Errorf("stored = %d, want only the first import's row", n)
	}
}

func TestService_StartWhenBusy(t *testing.T) {
	ctx := context.Background()
	st := newBlockingStore()
	svc := newTestService(st, Options{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})

	first, _ := svc.Validate(ctx, admin, "employee", "a.csv", employeeCSV(1))
	second, _ := svc.Validate(ctx, admin, "employee", "b.csv", employeeCSV(1))

	if err := svc.Start(ctx, admin, first.ID); err != nil {
		t.Fatalf("Start(first) error = %v", err)
	}
	waitClosed(t, st.started)

	if err := svc.Start(ctx, admin, second.ID); !errors.Is(err, ErrTooManyImports) {
		t.Errorf("Start(second) error = %v, want ErrTooManyImports", err)
	}
	if got, _ := svc.Get(admin, second.ID); got.State != StateValidated {
		t.Errorf("second State = %q, want %q", got.State, StateValidated)
	}

	close(st.release)
	resultOf(t, svc, admin, first.ID)
	if err := svc.WaitForImports(ctx); err != nil {
		t.Fatalf("WaitForImports() error = %v", err)
	}
	if err := svc.Start(ctx, admin, second.ID); err != nil {
		t.Errorf("Start(second) after release error = %v", err)
	}
	resultOf(t, svc, admin, second.ID)
}

func TestService_Discard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(1))
	if err := svc.Discard(admin, sess.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := svc.Get(admin, sess.ID); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("Get() after Discard error = %v, want ErrImportNotFound", err)
	}
	if err := svc.Start(ctx, admin, sess.ID); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("Start() after Discard error = %v, want ErrImportNotFound", err)
	}
}

func TestService_CancelBeforeStartDiscards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(1))
	if err := svc.Cancel(admin, sess.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := svc.Get(admin, sess.ID); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("Get() after Cancel error = %v, want ErrImportNotFound", err)
	}
}

func TestService_UnstartedSessionReleasesSubscribers(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		end  func(svc *Service, id string) error
	}{
		{"discard", 0, func(svc *Service, id string) error { return svc.Discard(admin, id) }},
		{"cancel", 0, func(svc *Service, id string) error { return svc.Cancel(admin, id) }},
		{"expiry", 20 * time.Millisecond, func(*Service, string) error { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(store.NewMemory(), Options{SessionTTL: tt.ttl})
			sess, err := svc.Validate(context.Background(), admin, "employee", "x.csv", employeeCSV(1))
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			ch, err := svc.SubscribeProgress(admin, sess.ID)
			if err != nil {
				t.Fatalf("SubscribeProgress() error = %v", err)
			}
			<-ch
			if err := tt.end(svc, sess.ID); err != nil {
				t.Fatalf("ending session error = %v", err)
			}

			select {
			case _, ok := <-ch:
				if ok {
					t.Error("received progress, want closed channel")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("progress channel not closed")
			}
		})
	}
}

func TestService_ErrorReport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", []byte("社員番号,氏\nE1,山田\nE2,\n"))
	report, err := svc.ErrorReport(admin, sess.ID)
	if err != nil {
		t.Fatalf("ErrorReport() error = %v", err)
	}
	if !bytes.Contains(report, []byte(`"E2"`)) || !bytes.Contains(report, []byte("氏は必須です")) {
		t.Errorf("ErrorReport() = %s, want the E2 row with its reason", report)
	}
	if bytes.Contains(report, []byte(`"E1"`)) {
		t.Errorf("ErrorReport() = %s, should not contain valid rows", report)
	}
}

// ============================================================================
// Run (synchronous)
// ============================================================================

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(st, Options{ChunkSize: 2})
	coll := store.CompanyCollection("co1", "employees")

	dry, err := svc.Run(ctx, admin, "employee", "x.csv", employeeCSV(3), true, nil)
	if err != nil {
		t.Fatalf("Run(dry) error = %v", err)
	}
	if dry.Result != nil || st.Len(coll) != 0 {
		t.Errorf("dry run wrote %d records, result = %v", st.Len(coll), dry.Result)
	}

	var progress []Progress
	report, err := svc.Run(ctx, admin, "employee", "x.csv", employeeCSV(3), false, collectProgress(&progress))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Result.SuccessCount != 3 || st.Len(coll) != 3 {
		t.Errorf("SuccessCount = %d, stored = %d, want 3", report.Result.SuccessCount, st.Len(coll))
	}
	if len(progress) != 2 || progress[1] != (Progress{3, 3}) {
		t.Errorf("progress = %v, want two reports ending at 3/3", progress)
	}

	// Importing the same file again updates instead of creating.
	again, err := svc.Run(ctx, admin, "employee", "x.csv", employeeCSV(3), false, nil)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if again.Validation.UpdateCount != 3 || len(again.Result.UpdatedIDs) != 3 || st.Len(coll) != 3 {
		t.Errorf("second run updates = %d, stored = %d, want 3 and 3", len(again.Result.UpdatedIDs), st.Len(coll))
	}

	hist, _ := svc.History(ctx, admin, "employee")
	if len(hist) != 2 {
		t.Errorf("History() = %d entries, want 2", len(hist))
	}
}

func TestService_ExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Options{})

	if _, err := svc.Run(ctx, admin, "client", "c.csv", []byte("取引先コード,取引先名\nC001,サンプル建設\n"), false, nil); err != nil {
		t.Fatalf("Run(client) error = %v", err)
	}
	site := []byte("現場コード,現場名,取引先コード,取引先名\nS001,渋谷工事,C001,\n")
	if _, err := svc.Run(ctx, admin, "site", "s.csv", site, false, nil); err != nil {
		t.Fatalf("Run(site) error = %v", err)
	}

	out, err := svc.Export(ctx, admin, "site")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.Contains(out, []byte(`"S001","渋谷工事","C001","サンプル建設"`)) {
		t.Errorf("Export() = %s, want the backfilled client name", out)
	}

	// The export is importable as is.
	report, err := svc.Run(ctx, admin, "site", "export.csv", out, true, nil)
	if err != nil {
		t.Fatalf("Run(export) error = %v", err)
	}
	if report.Validation.UpdateCount != 1 || report.Validation.ErrorCount != 0 {
		t.Errorf("re-import updates = %d, errors = %d, want 1/0", report.Validation.UpdateCount, report.Validation.ErrorCount)
	}

	tmpl, err := svc.Template("site")
	if err != nil || !bytes.Contains(tmpl, []byte(`"現場コード"`)) {
		t.Errorf("Template() = %s, %v", tmpl, err)
	}
}

func TestService_WaitForImportsTimeout(t *testing.T) {
	ctx := context.Background()
	st := newBlockingStore()
	svc := newTestService(st, Options{})

	sess, _ := svc.Validate(ctx, admin, "employee", "x.csv", employeeCSV(1))
	if err := svc.Start(ctx, admin, sess.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitClosed(t, st.started)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := svc.WaitForImports(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForImports() error = %v, want deadline exceeded", err)
	}

	svc.CancelAll()
	close(st.release)
	if err := svc.WaitForImports(ctx); err != nil {
		t.Errorf("WaitForImports() after release error = %v", err)
	}
}

func TestService_ExportRequiresAdmin(t *testing.T) {
	svc := newTestService(store.NewMemory(), Options{})
	if _, err := svc.Export(context.Background(), viewer, "employee"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("Export() error = %v, want ErrNotAdmin", err)
	}
}
