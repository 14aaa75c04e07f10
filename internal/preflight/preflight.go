// Package preflight runs the platform checks before the event loop
// starts: the kernel must support ambient capabilities (>= 4.3) and
// the supervisor must be running as root. Grounded on the
// unix.Geteuid rootless check of runsc/sandbox/sandbox.go.
package preflight

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// minKernelMajor/minKernelMinor is the minimum kernel version that
// supports ambient capabilities (Linux 4.3), required for the
// identity/capability transition at spawn time.
const (
	minKernelMajor = 4
	minKernelMinor = 3
)

// Check runs both platform checks, returning a descriptive error for
// whichever fails first.
func Check() error {
	if err := checkRoot(); err != nil {
		return err
	}
	return checkKernelVersion()
}

func checkRoot() error {
	if unix.Geteuid() != 0 {
		return fmt.Errorf("must run as root (euid %d)", unix.Geteuid())
	}
	return nil
}

func checkKernelVersion() error {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return fmt.Errorf("uname: %w", err)
	}
	release := cString(uts.Release[:])
	major, minor, err := parseKernelVersion(release)
	if err != nil {
		return fmt.Errorf("parsing kernel release %q: %w", release, err)
	}
	if major < minKernelMajor || (major == minKernelMajor && minor < minKernelMinor) {
		return fmt.Errorf("kernel %d.%d is too old for ambient capabilities, need >= %d.%d",
			major, minor, minKernelMajor, minKernelMinor)
	}
	return nil
}

func parseKernelVersion(release string) (major, minor int, err error) {
	fields := strings.SplitN(release, ".", 3)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("unexpected release format")
	}
	major, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	minorField := strings.TrimFunc(fields[1], func(r rune) bool { return r < '0' || r > '9' })
	minor, err = strconv.Atoi(minorField)
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
