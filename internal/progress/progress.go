package progress

import "time"

// Stage identifies a high-level step of a compression job.
type Stage string

const (
	StageValidating Stage = "validating"
	StageProbing    Stage = "probing"
	StageEncoding   Stage = "encoding"
	StageAnalyzing  Stage = "analyzing" // first pass of a two-pass encode
	StageRetrying   Stage = "retrying"
	StageCopying    Stage = "copying"
	StageCompleted  Stage = "completed"
	StageCancelled  Stage = "cancelled"
	StageError      Stage = "error"
)

// Terminal reports whether no further updates follow this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled || s == StageError
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
	StreamInfo // messages from vidshrink itself
)

// Event is one item of a job's progress stream: Update, Log or Result.
type Event interface {
	event()
}

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Stage   Stage
	Attempt int
	Percent float64 // 0..100, or <0 if unknown

	ETA     *time.Duration // optional
	Bytes   *int64         // optional output bytes so far
	Speed   *string        // optional, e.g. "1.2x"
	Message string         // short human-friendly status line
}

// Log is a log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per job when it completes or fails.
type Result struct {
	JobID      string
	OutputPath string
	Bytes      int64
	Warning    error // soft warning, e.g. target not fully met
	Err        error // nil on success
}

func (Update) event() {}
func (Log) event()    {}
func (Result) event() {}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}

// Chan forwards events to a channel. Updates and logs are dropped when fewer
// than Reserve free slots remain, so a slow consumer never stalls the encoder;
// results and terminal updates always block until delivered.
type Chan struct {
	C       chan<- Event
	Reserve int
}

func (c Chan) Update(u Update) {
	if u.Stage.Terminal() {
		c.C <- u
		return
	}
	c.offer(u)
}

func (c Chan) Log(l Log) {
	c.offer(l)
}

func (c Chan) Result(r Result) {
	c.C <- r
}

func (c Chan) offer(e Event) {
	if c.Reserve > 0 && cap(c.C)-len(c.C) <= c.Reserve {
		return
	}
	select {
	case c.C <- e:
	default:
	}
}

// Multi fans events out to several reporters.
type Multi []Reporter

func (m Multi) Update(u Update) {
	for _, r := range m {
		r.Update(u)
	}
}

func (m Multi) Log(l Log) {
	for _, r := range m {
		r.Log(l)
	}
}

func (m Multi) Result(res Result) {
	for _, r := range m {
		r.Result(res)
	}
}
