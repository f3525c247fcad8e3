package scheduler

import (
	"context"
	"strings"
	"testing"

	"github.com/donaldfilimon/ovo/internal/dag"
)

// threeNodeGraph builds compile:foo.c, compile:bar.c and link:app with the
// link depending on both compiles. Empty argv makes every task a no-op.
func threeNodeGraph(t *testing.T) (*dag.Graph, int64, int64, int64) {
	t.Helper()
	g := dag.NewGraph()
	foo := g.AddCompile("foo.c", "foo.o", nil)
	bar := g.AddCompile("bar.c", "bar.o", nil)
	link := g.AddLink("app", []string{"foo.o", "bar.o"}, "app", nil)
	if err := g.AddEdge(link, foo); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(link, bar); err != nil {
		t.Fatal(err)
	}
	return g, foo, bar, link
}

func TestExecuteSequentialNoOps(t *testing.T) {
	g, _, _, _ := threeNodeGraph(t)
	var s Scheduler
	stats, err := s.ExecuteSequential(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Completed != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want total=3 completed=3 failed=0", stats)
	}
}

func TestExecuteParallelNoOps(t *testing.T) {
	g, _, _, link := threeNodeGraph(t)
	s := Scheduler{Workers: 4}
	stats, err := s.Execute(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want completed=3", stats)
	}
	n, err := g.Node(link)
	if err != nil {
		t.Fatal(err)
	}
	if n.State != dag.Completed {
		t.Errorf("link state = %v, want Completed", n.State)
	}
}

func TestExecuteRespectsSkipped(t *testing.T) {
	g, foo, _, _ := threeNodeGraph(t)
	n, _ := g.Node(foo)
	n.State = dag.Skipped
	s := Scheduler{Workers: 2}
	stats, err := s.Execute(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Completed != 2 {
		t.Errorf("stats = %+v, want skipped=1 completed=2", stats)
	}
}

func TestExecuteSpawnFailureCascades(t *testing.T) {
	g := dag.NewGraph()
	broken := g.AddCompile("broken.c", "broken.o",
		[]string{"/nonexistent/ovo-test-compiler"})
	link := g.AddLink("app", []string{"broken.o"}, "app", nil)
	if err := g.AddEdge(link, broken); err != nil {
		t.Fatal(err)
	}

	s := Scheduler{Workers: 2}
	stats, err := s.Execute(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 2 {
		t.Errorf("stats = %+v, want failed=2 (node and dependent)", stats)
	}
	b, _ := g.Node(broken)
	if b.State != dag.Failed || b.Err == "" {
		t.Errorf("broken node = %v %q, want Failed with error text", b.State, b.Err)
	}
	l, _ := g.Node(link)
	if l.State != dag.Failed || l.Err != "dependency failed" {
		t.Errorf("link node = %v %q, want cascaded failure", l.State, l.Err)
	}
}

func TestStopOnFailure(t *testing.T) {
	g := dag.NewGraph()
	broken := g.AddCompile("broken.c", "broken.o",
		[]string{"/nonexistent/ovo-test-compiler"})
	// A chain behind the failing node that must not start once the failure
	// is observed: its root only becomes ready after the failing node is done.
	other := g.AddCompile("other.c", "other.o", nil)
	after := g.AddLink("later", []string{"other.o"}, "later", nil)
	g.AddEdge(after, other)
	g.AddEdge(other, broken)

	s := Scheduler{Workers: 1, StopOnFailure: true}
	stats, err := s.Execute(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 0 {
		t.Errorf("stats = %+v, want nothing completed after stop", stats)
	}
	if stats.Failed != 3 {
		t.Errorf("stats = %+v, want the chain marked failed", stats)
	}
}

func TestExecuteDryRun(t *testing.T) {
	g, _, _, _ := threeNodeGraph(t)
	var progress []Progress
	s := Scheduler{OnProgress: func(p Progress) { progress = append(progress, p) }}
	stats, err := s.ExecuteDryRun(g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 3 {
		t.Errorf("stats = %+v, want completed=3", stats)
	}
	if len(progress) != 3 {
		t.Fatalf("progress reported %d times, want 3", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Completed != 3 || last.Total != 3 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestSequentialRealProcesses(t *testing.T) {
	g := dag.NewGraph()
	ok := g.AddCompile("ok.c", "ok.o", []string{"true"})
	bad := g.AddCompile("bad.c", "bad.o", []string{"false"})
	s := Scheduler{}
	stats, err := s.ExecuteSequential(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want completed=1 failed=1", stats)
	}
	b, _ := g.Node(bad)
	if b.State != dag.Failed || !strings.Contains(b.Err, "exit status") {
		t.Errorf("bad node = %v %q, want non-zero exit recorded", b.State, b.Err)
	}
	o, _ := g.Node(ok)
	if o.State != dag.Completed {
		t.Errorf("ok node = %v, want Completed", o.State)
	}
}

func TestRunTaskCapturesOutput(t *testing.T) {
	res := runTask(context.Background(), Task{
		Argv: []string{"sh", "-c", "echo out; echo err >&2; exit 3"},
	})
	if res.Success {
		t.Fatal("exit 3 reported success")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "out" {
		t.Errorf("stdout = %q, want out", got)
	}
	if got := strings.TrimSpace(string(res.Stderr)); got != "err" {
		t.Errorf("stderr = %q, want err", got)
	}
}

func TestLimitedBufferTruncates(t *testing.T) {
	var b limitedBuffer
	chunk := make([]byte, 50*1024)
	if n, err := b.Write(chunk); n != len(chunk) || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if n, err := b.Write(chunk); n != len(chunk) || err != nil {
		t.Fatalf("second Write = %d, %v", n, err)
	}
	if len(b.Bytes()) != captureLimit {
		t.Errorf("buffer holds %d bytes, want capped at %d", len(b.Bytes()), captureLimit)
	}
}

func TestExecuteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, _, _, _ := threeNodeGraph(t)
	s := Scheduler{Workers: 2}
	_, err := s.Execute(ctx, g)
	if err == nil {
		t.Fatal("Execute on canceled context returned nil error")
	}
}
