package opregistry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// Bash substitutes parameters into a multi-line script and runs it line by
// line.
type Bash struct {
	Code string `yaml:"code"`
}

func (b *Bash) Execute(ctx context.Context, ectx *ExecutionContext) error {
	for _, line := range strings.Split(b.Code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		ectx.Log(model.LevelInfo, line)

		substituted, err := paramsub.SubstituteSingle("code", line, ectx.Parameters)
		if err != nil {
			return err
		}

		ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", substituted))

		if ectx.DryRun {
			continue
		}

		if err := procrunner.Run(ctx, substituted, ectx.Directory, nil, ectx.Logger, ectx.Tracker, ectx.StepName); err != nil {
			return err
		}
	}
	return nil
}
