package procrunner

import (
	"context"
	"fmt"

	gopsprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/nomos-run/nomos/internal/model"
)

// KillTree terminates rootPID and every descendant it can find in the
// current process table, signalling leaves first so a parent never outlives
// the children it might otherwise respawn or wait on.
// Processes that have already exited are logged and skipped, not errored.
func KillTree(ctx context.Context, rootPID int, logger Logger, stepName string) error {
	all, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("listing process table: %w", err)
	}

	children := make(map[int32][]int32)
	for _, p := range all {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], p.Pid)
	}

	order := discoveryOrder(int32(rootPID), children)
	// Reverse so leaves (discovered last) are signalled first.
	for i := len(order) - 1; i >= 0; i-- {
		killOne(ctx, order[i], logger, stepName)
	}
	return nil
}

// discoveryOrder walks the descendant closure of root breadth-first,
// returning root followed by its descendants in discovery order.
func discoveryOrder(root int32, children map[int32][]int32) []int32 {
	order := []int32{root}
	queue := []int32{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order
}

func killOne(ctx context.Context, pid int32, logger Logger, stepName string) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		if logger != nil {
			_ = logger.Log(model.LevelInfo, stepName, fmt.Sprintf("process %d already gone, skipping", pid))
		}
		return
	}
	if err := proc.KillWithContext(ctx); err != nil {
		if logger != nil {
			_ = logger.Log(model.LevelInfo, stepName, fmt.Sprintf("process %d already gone or unkillable: %v", pid, err))
		}
	}
}
