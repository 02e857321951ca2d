//go:build windows

package procrunner

// shellCommand wraps command for execution through cmd.exe.
func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}
