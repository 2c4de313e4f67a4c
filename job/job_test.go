package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"equipix/codec"
	"equipix/compress"
	"equipix/credentials"
	"equipix/failures"
	"equipix/success"
	taskqueue "equipix/taskQueue"
)

type jobEnv struct {
	jobsDir  string
	serveDir string
}

func setupJobEnv(t *testing.T) jobEnv {
	t.Helper()
	root := t.TempDir()
	env := jobEnv{jobsDir: filepath.Join(root, "jobs"), serveDir: filepath.Join(root, "serve")}
	t.Setenv("EQUIPIX_JOBS_DIR", env.jobsDir)
	t.Setenv("EQUIPIX_SERVE_DIR", env.serveDir)

	if err := success.Init(filepath.Join(root, "success.db")); err != nil {
		t.Fatalf("success.Init: %v", err)
	}
	if err := failures.Init(filepath.Join(root, "failures.db")); err != nil {
		t.Fatalf("failures.Init: %v", err)
	}
	if err := credentials.OpenDB(filepath.Join(root, "credentials.db")); err != nil {
		t.Fatalf("credentials.OpenDB: %v", err)
	}
	if err := taskqueue.OpenPendingQueueDB(filepath.Join(root, "queue.db")); err != nil {
		t.Fatalf("OpenPendingQueueDB: %v", err)
	}
	t.Cleanup(func() {
		taskqueue.ClosePendingQueueDB()
		credentials.CloseDB()
		failures.Close()
		success.Close()
	})

	b := compress.DefaultBudget()
	b.TargetFormat = "jpeg"
	c, err := compress.NewCompressor(codec.NewImageCodec(), b)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	Init(c, compress.DefaultBatchOptions(), 5*time.Second)
	return env
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

// newJob writes files into a fresh job directory and enqueues it.
func newJob(t *testing.T, env jobEnv, files map[string][]byte, mutate func(*JobInstructions)) JobInstructions {
	t.Helper()
	id := uuid.NewString()
	dir := filepath.Join(env.jobsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	instr := JobInstructions{ID: id, Dir: dir, CreatedAt: time.Now()}
	for _, name := range sortedKeys(files) {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil {
			t.Fatal(err)
		}
		instr.Files = append(instr.Files, SourceFile{Name: name, Stored: name})
	}
	if mutate != nil {
		mutate(&instr)
	}
	if err := Enqueue(instr); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return instr
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestInstructionsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	instr := JobInstructions{
		Files:       []SourceFile{{Name: "a b.jpg", Stored: "00_a_b", MIMEType: "image/jpeg"}},
		Existing:    3,
		StorageKeys: []string{"k1"},
		SubDir:      "site-1",
	}
	if err := WriteInstructions(dir, instr); err != nil {
		t.Fatalf("WriteInstructions: %v", err)
	}

	got, err := ReadInstructions(dir)
	if err != nil {
		t.Fatalf("ReadInstructions: %v", err)
	}
	if got.ID != filepath.Base(dir) || got.Dir != dir {
		t.Errorf("Expected id and dir to default from the directory, got %q %q", got.ID, got.Dir)
	}
	if got.Existing != 3 || got.SubDir != "site-1" || len(got.Files) != 1 || got.Files[0].Stored != "00_a_b" {
		t.Errorf("Unexpected instructions %+v", got)
	}

	if _, err := ReadInstructions(t.TempDir()); err == nil {
		t.Error("Expected error for directory without instructions")
	}
}

func TestProcessJobWritesResults(t *testing.T) {
	env := setupJobEnv(t)

	var mu sync.Mutex
	var payload callbackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("X-Tenant") != "acme" {
			t.Errorf("Expected callback header to be forwarded")
		}
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	instr := newJob(t, env, map[string][]byte{
		"a_pump.jpg":   testJPEG(t),
		"b_broken.jpg": []byte("not really a jpeg"),
	}, func(in *JobInstructions) {
		in.SubDir = "site-4"
		in.CallbackURL = srv.URL
		in.CallbackHeaders = map[string]string{"X-Tenant": "acme"}
	})

	if err := processJob(context.Background(), instr.Dir); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	if state, _ := GetJobState(instr.ID); state != JobStateCompleted {
		t.Errorf("Expected completed, got %s", state)
	}

	record, err := success.GetSuccess(instr.ID)
	if err != nil || record == nil {
		t.Fatalf("Expected success record, got %v, %v", record, err)
	}
	if record.FileCount != 2 || record.DegradedCount != 1 {
		t.Errorf("Expected 2 files with 1 degraded, got %d / %d", record.FileCount, record.DegradedCount)
	}

	for _, f := range record.Files {
		path := filepath.Join(env.serveDir, "site-4", f.Filename)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to be written: %v", path, err)
		}
	}

	broken := record.Files[1]
	written, _ := os.ReadFile(filepath.Join(env.serveDir, "site-4", broken.Filename))
	if string(written) != "not really a jpeg" || broken.Reason != string(compress.ReasonDecodeFailed) {
		t.Errorf("Expected undecodable file to be stored unchanged, got %+v", broken)
	}

	if _, err := os.Stat(instr.Dir); !os.IsNotExist(err) {
		t.Errorf("Expected job directory to be removed, stat err: %v", err)
	}
	if entries, _ := taskqueue.ListPendingQueue(); len(entries) != 0 {
		t.Errorf("Expected pending queue to be empty, got %d", len(entries))
	}

	mu.Lock()
	defer mu.Unlock()
	if payload.Status != "completed" || payload.DegradedCount != 1 || payload.FileCount != 2 {
		t.Errorf("Unexpected callback payload %+v", payload)
	}
}

func TestProcessJobBatchCountExceeded(t *testing.T) {
	env := setupJobEnv(t)
	img := testJPEG(t)

	instr := newJob(t, env, map[string][]byte{"a.jpg": img, "b.jpg": img}, func(in *JobInstructions) {
		in.Existing = 9
	})

	err := processJob(context.Background(), instr.Dir)
	if !errors.Is(err, compress.ErrBatchCountExceeded) {
		t.Fatalf("Expected ErrBatchCountExceeded, got %v", err)
	}
	if state, _ := GetJobState(instr.ID); state != JobStateFailed {
		t.Errorf("Expected failed, got %s", state)
	}
	record, _ := failures.GetFailure(instr.ID)
	if record == nil || record.Stage != failures.StageCompress {
		t.Errorf("Expected compress stage failure, got %+v", record)
	}
}

func TestProcessJobUnknownStorageKey(t *testing.T) {
	env := setupJobEnv(t)

	instr := newJob(t, env, map[string][]byte{"a.jpg": testJPEG(t)}, func(in *JobInstructions) {
		in.StorageKeys = []string{"never-registered"}
	})

	err := processJob(context.Background(), instr.Dir)
	if !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("Expected credentials.ErrNotFound, got %v", err)
	}
	record, _ := failures.GetFailure(instr.ID)
	if record == nil || record.Stage != failures.StageWrite {
		t.Errorf("Expected write stage failure, got %+v", record)
	}
}

func TestProcessJobRegisteredStorageKey(t *testing.T) {
	env := setupJobEnv(t)
	if err := credentials.StoreCredentials("local", credentials.Entry{Backend: "directServe", AccessInfo: map[string]string{"folder": "tenant"}}); err != nil {
		t.Fatal(err)
	}

	instr := newJob(t, env, map[string][]byte{"a.jpg": testJPEG(t)}, func(in *JobInstructions) {
		in.StorageKeys = []string{"local"}
	})
	if err := processJob(context.Background(), instr.Dir); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	record, _ := success.GetSuccess(instr.ID)
	if record == nil || len(record.Files) != 1 {
		t.Fatalf("Expected one stored file, got %+v", record)
	}
	if _, err := os.Stat(filepath.Join(env.serveDir, "tenant", record.Files[0].Filename)); err != nil {
		t.Errorf("Expected file under the registered folder: %v", err)
	}
}

func TestProcessJobInterruptedWhileWriting(t *testing.T) {
	env := setupJobEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An S3 compatible endpoint that goes away mid upload, the way a
	// shutdown does.
	s3srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer s3srv.Close()

	var callbacks int
	var mu sync.Mutex
	cbsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		callbacks++
		mu.Unlock()
	}))
	defer cbsrv.Close()

	if err := credentials.StoreCredentials("local", credentials.Entry{Backend: "directServe"}); err != nil {
		t.Fatal(err)
	}
	if err := credentials.StoreCredentials("bucket", credentials.Entry{Backend: "s3", AccessInfo: map[string]string{
		"bucket":    "photos",
		"region":    "us-east-1",
		"endpoint":  s3srv.URL,
		"accessKey": "test",
		"secretKey": "test",
	}}); err != nil {
		t.Fatal(err)
	}

	instr := newJob(t, env, map[string][]byte{"a.jpg": testJPEG(t)}, func(in *JobInstructions) {
		in.StorageKeys = []string{"local", "bucket"}
		in.CallbackURL = cbsrv.URL
	})

	err := processJob(ctx, instr.Dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if state, _ := GetJobState(instr.ID); state != JobStateCancelled {
		t.Errorf("Expected cancelled, got %s", state)
	}
	if _, err := os.Stat(filepath.Join(instr.Dir, instructionsFile)); err != nil {
		t.Errorf("Expected job directory to survive: %v", err)
	}
	if v, err := taskqueue.GetFromPendingQueue(instr.ID); err != nil || string(v) != instr.Dir {
		t.Errorf("Expected queue entry to survive, got %q, %v", v, err)
	}
	if record, _ := failures.GetFailure(instr.ID); record != nil {
		t.Errorf("Expected no failure record, got %+v", record)
	}
	if record, _ := success.GetSuccess(instr.ID); record != nil {
		t.Errorf("Expected no success record, got %+v", record)
	}
	mu.Lock()
	defer mu.Unlock()
	if callbacks != 0 {
		t.Errorf("Expected no callback, got %d", callbacks)
	}
}

func TestCancelJob(t *testing.T) {
	env := setupJobEnv(t)
	instr := newJob(t, env, map[string][]byte{"a.jpg": testJPEG(t)}, nil)

	if state, _ := GetJobState(instr.ID); state != JobStatePending {
		t.Fatalf("Expected new job to be pending, got %s", state)
	}
	if err := CancelJob(instr.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if state, _ := GetJobState(instr.ID); state != JobStateCancelled {
		t.Errorf("Expected cancelled, got %s", state)
	}
	if _, err := os.Stat(instr.Dir); !os.IsNotExist(err) {
		t.Error("Expected job directory to be removed")
	}
	for _, dir := range GetPendingJobs() {
		if dir == instr.Dir {
			t.Error("Cancelled job still pending")
		}
	}

	if err := CancelJob(instr.ID); err == nil {
		t.Error("Expected error cancelling twice")
	}
	if err := CancelJob("no-such-job"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}

	// a cancelled job is skipped by the processor
	if err := processJob(context.Background(), instr.Dir); err != nil {
		t.Errorf("Expected cancelled job to be skipped, got %v", err)
	}
	if state, _ := GetJobState(instr.ID); state != JobStateCancelled {
		t.Errorf("Expected state to stay cancelled, got %s", state)
	}
}

func TestScanForPendingJobs(t *testing.T) {
	env := setupJobEnv(t)

	dir := filepath.Join(env.jobsDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteInstructions(dir, JobInstructions{}); err != nil {
		t.Fatal(err)
	}
	// a queue entry whose directory is gone gets dropped
	if err := taskqueue.AddToPendingQueue("ghost", []byte(filepath.Join(env.jobsDir, "ghost"))); err != nil {
		t.Fatal(err)
	}

	if err := ScanForPendingJobs(); err != nil {
		t.Fatalf("ScanForPendingJobs: %v", err)
	}

	found := false
	for _, p := range GetPendingJobs() {
		if p == dir {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s to be pending", dir)
	}
	if _, err := taskqueue.GetFromPendingQueue("ghost"); err == nil {
		t.Error("Expected stale queue entry to be removed")
	}

	mu.Lock()
	removePendingLocked(dir)
	mu.Unlock()
}

func TestProcessPendingJobsLoop(t *testing.T) {
	env := setupJobEnv(t)
	instr := newJob(t, env, map[string][]byte{"a.jpg": testJPEG(t)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ProcessPendingJobs(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if state, _ := GetJobState(instr.ID); state == JobStateCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if state, _ := GetJobState(instr.ID); state != JobStateCompleted {
		t.Fatalf("Expected job to complete, got %s", state)
	}
}
