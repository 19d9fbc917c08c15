package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"vidshrink/internal/metrics"
	"vidshrink/internal/model"
	"vidshrink/internal/progress"
	"vidshrink/internal/util"
)

const (
	ffmpegPath  = "/bin/ffmpeg"
	ffprobePath = "/bin/ffprobe"
	mib         = 1024 * 1024
)

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	results []progress.Result
	logs    []progress.Log
}

func (r *recordingReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}
func (r *recordingReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
}
func (r *recordingReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// fakeRunner simulates ffprobe and an ffmpeg whose output size is exactly
// (video+audio bitrate) × duration / 8, multiplied by a per-call scale.
type fakeRunner struct {
	duration float64
	scale    []float64 // per ffmpeg call; 1 when absent
	failOn   int       // ffmpeg call index that exits 1; -1 for none
	block    bool      // ffmpeg writes partial output and waits for cancellation
	started  chan struct{}
	probeErr error

	mu          sync.Mutex
	probeCalls  int
	ffmpegCalls int
	bitrates    []int64
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	switch spec.Path {
	case ffprobePath:
		f.mu.Lock()
		f.probeCalls++
		f.mu.Unlock()
		if f.probeErr != nil {
			return util.CmdResult{Code: 1, Stderr: []byte("moov atom not found\n")}, f.probeErr
		}
		js := fmt.Sprintf(`{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720}],"format":{"format_name":"mov,mp4","duration":"%f"}}`, f.duration)
		return util.CmdResult{Stdout: []byte(js)}, nil
	case ffmpegPath:
	default:
		return util.CmdResult{}, errors.New("unexpected tool path: " + spec.Path)
	}

	f.mu.Lock()
	call := f.ffmpegCalls
	f.ffmpegCalls++
	f.mu.Unlock()

	v := argInt(spec.Args, "-b:v")
	a := argInt(spec.Args, "-b:a")
	f.mu.Lock()
	f.bitrates = append(f.bitrates, v)
	f.mu.Unlock()
	out := spec.Args[len(spec.Args)-1]

	if f.block {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		close(f.started)
		<-ctx.Done()
		return util.CmdResult{Code: -1}, fmt.Errorf("command interrupted: %w", ctx.Err())
	}
	if call == f.failOn {
		spec.StderrLine("Error while opening encoder")
		return util.CmdResult{Code: 1, Stderr: []byte("Error while opening encoder\n")}, errors.New("exit status 1")
	}

	scale := 1.0
	if call < len(f.scale) {
		scale = f.scale[call]
	}
	size := int64(float64(v+a) * f.duration / 8 * scale)
	if err := writeSparse(out, size); err != nil {
		return util.CmdResult{Code: -1}, err
	}
	spec.StdoutLine("out_time_us=1000000")
	spec.StdoutLine("progress=end")
	return util.CmdResult{}, nil
}

func (f *fakeRunner) counts() (probe, ffmpeg int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls, f.ffmpegCalls
}

func argInt(args []string, flag string) int64 {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			v, _ := strconv.ParseInt(args[i+1], 10, 64)
			return v
		}
	}
	return 0
}

func writeSparse(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newSource(t *testing.T, name string, size int64) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := writeSparse(p, size); err != nil {
		t.Fatalf("create source: %v", err)
	}
	return p
}

func newTestService(r *fakeRunner, extra ...Option) *Service {
	logger, _ := test.NewNullLogger()
	opts := append([]Option{
		WithFFmpegPath(ffmpegPath),
		WithFFprobePath(ffprobePath),
		WithRunner(r),
		WithLogger(logger),
		WithCores(8),
	}, extra...)
	return NewService(opts...)
}

func assertNoCandidates(t *testing.T, dest string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(dest), ".*.try*"))
	if len(matches) > 0 {
		t.Errorf("candidate files left behind: %v", matches)
	}
}

// ---------- Tests ----------

func TestNewService_Defaults(t *testing.T) {
	s := NewService()
	if s.runner == nil || s.reporter == nil || s.log == nil {
		t.Fatal("defaults not applied")
	}
	if s.cores < 1 {
		t.Errorf("cores = %d", s.cores)
	}
	if s.tuning != DefaultTuning() {
		t.Errorf("tuning = %+v", s.tuning)
	}
	if s.enc.AudioBps != 128_000 || s.enc.Container != "mp4" {
		t.Errorf("enc = %+v", s.enc)
	}
}

func TestCompressToTarget_ExactFitSingleAttempt(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: -1}
	rep := &recordingReporter{}
	m := metrics.New()
	s := newTestService(r, WithReporter(rep), WithMetrics(m))

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{
		SourcePath:  src,
		TargetBytes: 10 * mib,
		CPU:         model.CPUAuto,
	})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if _, calls := r.counts(); calls != 1 {
		t.Fatalf("ffmpeg calls = %d, want 1", calls)
	}
	if len(res.Attempts) != 1 || res.Chosen != 0 {
		t.Fatalf("attempts = %+v chosen = %d", res.Attempts, res.Chosen)
	}
	if res.Attempts[0].VideoBps != 571_050 {
		t.Errorf("video bps = %d, want 571050", res.Attempts[0].VideoBps)
	}
	if !res.TargetMet || res.Warning != nil {
		t.Errorf("TargetMet = %v, Warning = %v", res.TargetMet, res.Warning)
	}
	wantDest := filepath.Join(filepath.Dir(src), "clip_compressed.mp4")
	if res.OutputPath != wantDest {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, wantDest)
	}
	fi, err := os.Stat(wantDest)
	if err != nil || fi.Size() != res.Bytes || res.Bytes > 10*mib {
		t.Errorf("dest stat = %v, %v; bytes = %d", fi, err, res.Bytes)
	}
	assertNoCandidates(t, wantDest)

	if len(rep.results) != 1 || rep.results[0].Err != nil || rep.results[0].OutputPath != wantDest {
		t.Errorf("results = %+v", rep.results)
	}
	last := rep.updates[len(rep.updates)-1]
	if last.Stage != progress.StageCompleted {
		t.Errorf("final stage = %v", last.Stage)
	}
}

func TestCompressToTarget_OvershootRetriesOnceLower(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: -1, scale: []float64{1.2}}
	s := newTestService(r)

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{
		SourcePath:  src,
		TargetBytes: 10 * mib,
		CPU:         model.CPUAuto,
	})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if _, calls := r.counts(); calls != 2 {
		t.Fatalf("ffmpeg calls = %d, want 2", calls)
	}
	if len(res.Attempts) != 2 || res.Chosen != 1 {
		t.Fatalf("attempts = %+v chosen = %d", res.Attempts, res.Chosen)
	}
	if res.Attempts[1].VideoBps >= res.Attempts[0].VideoBps {
		t.Errorf("retry bitrate %d not lower than %d", res.Attempts[1].VideoBps, res.Attempts[0].VideoBps)
	}
	// round(571050 × target/actual × 0.95)
	if res.Attempts[1].VideoBps != 452_082 {
		t.Errorf("retry bps = %d, want 452082", res.Attempts[1].VideoBps)
	}
	if res.Bytes != res.Attempts[1].Bytes || !res.TargetMet {
		t.Errorf("result = %+v", res)
	}
	assertNoCandidates(t, res.OutputPath)
}

func TestCompressToTarget_EncodeFailureNoRetry(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: 0}
	rep := &recordingReporter{}
	s := newTestService(r, WithReporter(rep))

	dest := filepath.Join(t.TempDir(), "out.mp4")
	_, err := s.CompressToTarget(context.Background(), model.CompressionRequest{
		SourcePath:  src,
		TargetBytes: 10 * mib,
		DestPath:    dest,
		CPU:         model.CPUAuto,
	})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("error = %v, want ErrEncode", err)
	}
	var f *Failure
	if !errors.As(err, &f) || f.ExitCode != 1 || f.Attempt != 0 || f.Diagnostic == "" {
		t.Errorf("failure = %+v", f)
	}
	if _, calls := r.counts(); calls != 1 {
		t.Errorf("ffmpeg calls = %d, want 1", calls)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("destination should not exist")
	}
	assertNoCandidates(t, dest)
	if len(rep.results) != 1 || rep.results[0].Err == nil {
		t.Errorf("results = %+v", rep.results)
	}
}

func TestCompressToTarget_ValidationBeforeAnySubprocess(t *testing.T) {
	src := newSource(t, "clip.mp4", 5*mib)

	tests := []struct {
		name string
		req  model.CompressionRequest
	}{
		{"target exceeds source", model.CompressionRequest{SourcePath: src, TargetBytes: 6 * mib, CPU: model.CPUAuto}},
		{"zero target", model.CompressionRequest{SourcePath: src, TargetBytes: 0, CPU: model.CPUAuto}},
		{"missing source", model.CompressionRequest{SourcePath: src + ".nope", TargetBytes: mib, CPU: model.CPUAuto}},
		{"directory source", model.CompressionRequest{SourcePath: filepath.Dir(src), TargetBytes: mib, CPU: model.CPUAuto}},
		{"cpu out of range", model.CompressionRequest{SourcePath: src, TargetBytes: mib, CPU: model.CPUMode{Percent: 150}}},
		{"dest is source", model.CompressionRequest{SourcePath: src, TargetBytes: mib, DestPath: src, CPU: model.CPUAuto}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{duration: 60, failOn: -1}
			s := newTestService(r)
			_, err := s.CompressToTarget(context.Background(), tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if p, f := r.counts(); p+f != 0 {
				t.Errorf("subprocess calls = %d probe, %d ffmpeg; want none", p, f)
			}
		})
	}
}

func TestCompressToTarget_InfeasibleTarget(t *testing.T) {
	src := newSource(t, "clip.mp4", 5*mib)
	r := &fakeRunner{duration: 120, failOn: -1}
	s := newTestService(r)

	// 1 KiB cannot hold 120s of 128 kbps audio.
	_, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 1024, CPU: model.CPUAuto})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if _, calls := r.counts(); calls != 0 {
		t.Errorf("ffmpeg calls = %d, want 0", calls)
	}
}

func TestCompressToTarget_ProbeFailure(t *testing.T) {
	src := newSource(t, "clip.mp4", 5*mib)
	r := &fakeRunner{duration: 120, failOn: -1, probeErr: errors.New("exit status 1")}
	s := newTestService(r)

	_, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: mib, CPU: model.CPUAuto})
	if !errors.Is(err, ErrProbe) {
		t.Fatalf("error = %v, want ErrProbe", err)
	}
	if _, calls := r.counts(); calls != 0 {
		t.Errorf("ffmpeg calls = %d, want 0", calls)
	}
}

func TestCompressToTarget_BothOverReturnsSmallerWithWarning(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: -1, scale: []float64{1.5, 2.0}}
	s := newTestService(r)

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if !errors.Is(res.Warning, ErrTargetNotFullyMet) || res.TargetMet {
		t.Fatalf("Warning = %v, TargetMet = %v", res.Warning, res.TargetMet)
	}
	smaller := 0
	if res.Attempts[1].Bytes < res.Attempts[0].Bytes {
		smaller = 1
	}
	if res.Chosen != smaller || res.Bytes != res.Attempts[smaller].Bytes {
		t.Errorf("chosen = %d, want %d", res.Chosen, smaller)
	}
	if fi, err := os.Stat(res.OutputPath); err != nil || fi.Size() != res.Bytes {
		t.Errorf("dest = %v, %v", fi, err)
	}
	assertNoCandidates(t, res.OutputPath)
}

func TestCompressToTarget_RetryFailureKeepsFirstAttempt(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: 1, scale: []float64{1.2}}
	s := newTestService(r)

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if len(res.Attempts) != 1 || res.Chosen != 0 {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
	if !errors.Is(res.Warning, ErrTargetNotFullyMet) {
		t.Errorf("Warning = %v", res.Warning)
	}
}

func TestCompressToTarget_Passthrough(t *testing.T) {
	src := newSource(t, "clip.mp4", mib)
	r := &fakeRunner{duration: 30, failOn: -1}
	s := newTestService(r)

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: mib - 10*1024, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if !res.Passthrough || res.Bytes != mib {
		t.Errorf("result = %+v", res)
	}
	if _, calls := r.counts(); calls != 0 {
		t.Errorf("ffmpeg calls = %d, want 0", calls)
	}

	// Different container always encodes.
	srcMKV := newSource(t, "clip.mkv", mib)
	res, err = s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: srcMKV, TargetBytes: mib - 10*1024, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() mkv error: %v", err)
	}
	if res.Passthrough {
		t.Error("mkv source should be remuxed, not copied")
	}
}

func TestCompressToTarget_PassthroughOutsideToleranceEncodes(t *testing.T) {
	// Within the copy margin of the source, but the source is 5.15% over the target.
	src := newSource(t, "clip.mp4", 1_000_000)
	r := &fakeRunner{duration: 30, failOn: -1}
	s := newTestService(r)

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 951_000, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if res.Passthrough {
		t.Fatal("source outside tolerance must be encoded, not copied")
	}
	if _, calls := r.counts(); calls != 1 {
		t.Errorf("ffmpeg calls = %d, want 1", calls)
	}
	if !res.TargetMet || res.Warning != nil || res.Bytes != 951_000 {
		t.Errorf("result = %+v", res)
	}
}

func TestCopySource_WarnsWhenOutsideTolerance(t *testing.T) {
	src := newSource(t, "clip.mp4", 1_000_000)
	dest := filepath.Join(t.TempDir(), "out.mp4")
	s := newTestService(&fakeRunner{failOn: -1})
	logger, _ := test.NewNullLogger()

	req := model.CompressionRequest{SourcePath: src, SourceBytes: 1_000_000, TargetBytes: 900_000, DestPath: dest}
	res, err := s.copySource(context.Background(), "job", logger, req, model.FinalResult{TargetBytes: 900_000, Chosen: -1})
	if err != nil {
		t.Fatalf("copySource() error: %v", err)
	}
	if res.TargetMet || !errors.Is(res.Warning, ErrTargetNotFullyMet) {
		t.Errorf("TargetMet = %v, Warning = %v", res.TargetMet, res.Warning)
	}
	if res.Bytes != 1_000_000 || res.OutputPath != dest {
		t.Errorf("result = %+v", res)
	}
}

func TestCompressToTarget_ManualCPUThreads(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	var seen []string
	r := &argsRunner{fakeRunner: &fakeRunner{duration: 120, failOn: -1}, onArgs: func(a []string) { seen = a }}
	s := newTestService(r.fakeRunner, WithRunner(r))

	_, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUMode{Percent: 50}})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if argInt(seen, "-threads") != 4 {
		t.Errorf("threads = %d, want 4 (50%% of 8 cores)", argInt(seen, "-threads"))
	}
}

type argsRunner struct {
	*fakeRunner
	onArgs func([]string)
}

func (a *argsRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	if spec.Path == ffmpegPath {
		a.onArgs(spec.Args)
	}
	return a.fakeRunner.Run(ctx, spec)
}

func TestCompressToTarget_AlreadyCancelled(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	r := &fakeRunner{duration: 120, failOn: -1}
	s := newTestService(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.CompressToTarget(ctx, model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUAuto})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if _, calls := r.counts(); calls != 0 {
		t.Errorf("ffmpeg calls = %d, want 0", calls)
	}
}

func TestChoose(t *testing.T) {
	s := NewService()
	mk := func(sizes ...int64) []model.EncodingAttempt {
		out := make([]model.EncodingAttempt, len(sizes))
		for i, b := range sizes {
			out[i] = model.EncodingAttempt{Index: i, Bytes: b}
		}
		return out
	}
	tests := []struct {
		name   string
		sizes  []int64
		target int64
		want   int
	}{
		{"single under", []int64{90}, 100, 0},
		{"largest under wins", []int64{95, 80}, 100, 0},
		{"retry under, first over", []int64{120, 90}, 100, 1},
		{"exact target", []int64{100, 90}, 100, 0},
		{"both over picks smaller", []int64{130, 110}, 100, 1},
		{"both over first smaller", []int64{104, 110}, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.choose(mk(tt.sizes...), tt.target); got != tt.want {
				t.Errorf("choose() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlan_AudioBelowFloorIsBudgeted(t *testing.T) {
	src := newSource(t, "clip.mp4", 100*mib)
	enc := DefaultEncodeOptions()
	enc.AudioBps = 16_000
	var seen []string
	r := &argsRunner{fakeRunner: &fakeRunner{duration: 120, failOn: -1}, onArgs: func(a []string) { seen = a }}
	s := newTestService(r.fakeRunner, WithRunner(r), WithEncodeOptions(enc))

	p, err := s.Plan(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if p.Enc.AudioBps != 32_000 || p.VideoBps != 667_050 {
		t.Errorf("AudioBps = %d, VideoBps = %d, want 32000 and 667050", p.Enc.AudioBps, p.VideoBps)
	}

	res, err := s.CompressToTarget(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUAuto})
	if err != nil {
		t.Fatalf("CompressToTarget() error: %v", err)
	}
	if argInt(seen, "-b:a") != 32_000 {
		t.Errorf("-b:a = %d, want 32000", argInt(seen, "-b:a"))
	}
	if len(res.Attempts) != 1 || res.Warning != nil {
		t.Errorf("attempts = %d, warning = %v", len(res.Attempts), res.Warning)
	}
}

func TestPlan(t *testing.T) {
	src := newSource(t, "clip.mkv", 100*mib)
	r := &fakeRunner{duration: 120, failOn: -1}
	s := newTestService(r)

	p, err := s.Plan(context.Background(), model.CompressionRequest{SourcePath: src, TargetBytes: 10 * mib, CPU: model.CPUMode{Percent: 25}})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if p.VideoBps != 571_050 {
		t.Errorf("VideoBps = %d", p.VideoBps)
	}
	if !p.Remux || p.Passthrough {
		t.Errorf("Remux = %v, Passthrough = %v", p.Remux, p.Passthrough)
	}
	if p.Enc.Threads != 2 {
		t.Errorf("Threads = %d, want 2", p.Enc.Threads)
	}
	if p.Request.SourceBytes != 100*mib || p.Request.DurationSec != 120 {
		t.Errorf("Request = %+v", p.Request)
	}
	if filepath.Base(p.Request.DestPath) != "clip_compressed.mp4" {
		t.Errorf("DestPath = %q", p.Request.DestPath)
	}
	if _, calls := r.counts(); calls != 0 {
		t.Errorf("Plan must not encode, ffmpeg calls = %d", calls)
	}
	if p.String() == "" {
		t.Error("empty plan string")
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&Failure{Kind: ErrEncode, Attempt: 1, Err: cause})
	if !errors.Is(err, ErrEncode) || !errors.Is(err, cause) {
		t.Fatal("Failure should match kind and cause")
	}
	if errors.Is(err, ErrProbe) {
		t.Fatal("Failure should not match other kinds")
	}
	if got := err.Error(); got != "encode failed (attempt 2): boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestEncodeFailure_ClassifiesCancellation(t *testing.T) {
	err := encodeFailure(0, fmt.Errorf("encode interrupted: %w", context.Canceled))
	if !errors.Is(err, ErrCancelled) || errors.Is(err, ErrEncode) {
		t.Fatalf("error = %v, want ErrCancelled only", err)
	}
	err = encodeFailure(0, fmt.Errorf("encode interrupted: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("deadline should count as cancellation, got %v", err)
	}
}

func TestService_WithDoesNotMutate(t *testing.T) {
	s := NewService(WithJobID("a"))
	c := s.with(WithJobID("b"))
	if s.jobID != "a" || c.jobID != "b" {
		t.Errorf("jobIDs = %q, %q", s.jobID, c.jobID)
	}
}
