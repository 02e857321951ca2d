package opregistry

import (
	"context"
	"fmt"

	"github.com/nomos-run/nomos/internal/paramsub"
)

// Sync scans a directory for Credentials/Scripts/Jobs to upsert and
// delete. The scan itself lives in internal/defs, reached through the
// ExecutionContext's Syncer so opregistry stays free of the CRUD
// package's filesystem layout assumptions.
type Sync struct {
	Directory string `yaml:"directory"`
}

func (s *Sync) Execute(ctx context.Context, ectx *ExecutionContext) error {
	if ectx.DryRun {
		return nil
	}

	directory, err := paramsub.SubstituteSingle("directory", s.Directory, ectx.Parameters)
	if err != nil {
		return err
	}
	if ectx.Sync == nil {
		return fmt.Errorf("sync operation: no Syncer configured")
	}
	return ectx.Sync.Sync(ctx, ectx, directory)
}
