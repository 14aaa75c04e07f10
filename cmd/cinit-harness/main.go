// Command cinit-harness is an out-of-core test-driver binary, kept
// separate from the supervisor itself: it connects to a running
// supervisor's status socket, polls it with backoff until a named
// program reaches an expected state, and prints the final report.
// Grounded on the backoff.WithContext/backoff.Retry polling pattern of
// runsc/sandbox/sandbox.go's waitForStopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

func main() {
	statusPath := flag.String("status-socket", "/run/cinit.socket", "path to the supervisor's status socket")
	program := flag.String("program", "", "name of the program to wait for (empty: just print the report once)")
	wantState := flag.String("state", "running", "state to wait for when -program is set")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait before giving up")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := waitForCondition(ctx, *statusPath, *program, *wantState)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cinit-harness:", err)
		os.Exit(1)
	}
	fmt.Print(report)
}

// waitForCondition connects to the status socket repeatedly (constant
// 100ms backoff, bounded by ctx) until either no program name was
// requested (in which case one fetch is enough) or the named program's
// reported state matches wantState.
func waitForCondition(ctx context.Context, statusPath, program, wantState string) (string, error) {
	var lastReport string

	b := backoff.WithContext(backoff.NewConstantBackOff(100*time.Millisecond), ctx)
	op := func() error {
		report, err := fetchStatus(statusPath)
		if err != nil {
			return err
		}
		lastReport = report

		if program == "" {
			return nil
		}
		if programInState(report, program, wantState) {
			return nil
		}
		return fmt.Errorf("program %q has not reached state %q yet", program, wantState)
	}

	if err := backoff.Retry(op, b); err != nil {
		return lastReport, err
	}
	return lastReport, nil
}

func fetchStatus(path string) (string, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return sb.String(), nil
}

// programInState scans the status report's text blocks (one per
// program, separated by blank lines) for one whose name= line matches
// program and whose state= line matches wantState.
func programInState(report, program, wantState string) bool {
	for _, block := range strings.Split(report, "\n\n") {
		if strings.Contains(block, "name="+program+"\n") && strings.Contains(block, "state="+wantState+"\n") {
			return true
		}
	}
	return false
}
