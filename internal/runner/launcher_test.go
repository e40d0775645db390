package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/Reducta/internal/mq"
)

// fakeProcess copies input to output, adding a result field the way
// a real reduction process would.
// The input is single-line JSON, so appending fields before the
// closing brace is enough.
const fakeProcess = `#!/bin/sh
sed 's/}$/,"message":"ok","reduction_data":["\/out\/WISH\/62892"]}/' "$1" > "$2"
`

func TestLaunch(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "reduce.sh")
	if err := os.WriteFile(script, []byte(fakeProcess), 0o755); err != nil {
		t.Fatal(err)
	}

	l := NewProcessLauncher(Config{
		Command: script,
		WorkDir: dir,
		Timeout: 30 * time.Second,
	}, slog.Default())

	msg := &mq.ReductionMessage{
		RunNumber:  62892,
		Instrument: "WISH",
		RBNumber:   1234567,
		Data:       "/archive/WISH00062892.nxs",
	}

	result, err := l.Launch(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "ok" {
		t.Errorf("message = %q", result.Message)
	}
	if len(result.ReductionData) != 1 || result.ReductionData[0] != "/out/WISH/62892" {
		t.Errorf("reduction_data = %v", result.ReductionData)
	}
	// Input fields survive the round trip.
	if result.RunNumber.Int() != 62892 || result.Instrument != "WISH" {
		t.Errorf("input fields lost: %+v", result)
	}
}

func TestLaunch_ProcessFails(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	l := NewProcessLauncher(Config{Command: script, WorkDir: dir, Timeout: 30 * time.Second}, slog.Default())

	_, err := l.Launch(context.Background(), &mq.ReductionMessage{
		RunNumber:  1,
		Instrument: "WISH",
		Data:       "/archive/x.nxs",
	})
	if err == nil {
		t.Fatal("expected error from failing process")
	}
}
