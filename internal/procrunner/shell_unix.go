//go:build !windows

package procrunner

// shellCommand wraps command for execution through the POSIX shell.
func shellCommand(command string) (string, []string) {
	return "sh", []string{"-c", command}
}
