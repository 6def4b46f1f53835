package main

import (
	"context"
	"fmt"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/spf13/cobra"
)

var stubFlags transferFlags

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Copy a file to the archive store, then replace the source with a space-reclaiming stub",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd.Context(), stubFlags, true)
	},
}

func init() {
	bindTransferFlags(stubCmd, &stubFlags)
}

// stubXattrName holds the sink location a stubbed file's data now lives
// under, so a later restore can resolve it.
const stubXattrName = "openarchive.stub_location"

// stubifySource truncates the already-backed-up source file to zero bytes
// and records where its data now lives as an xattr, completing the HSM
// "stub" contract: the file still resolves at its original path but no
// longer occupies space on the source volume.
func stubifySource(ctx context.Context, src, dst *endpoint, srcPath, dstPath string) error {
	srcLoc := archtypes.NewLocation(src.product, src.store, srcPath)

	stubTarget := fmt.Sprintf("%s/%s/%s", dst.product, dst.store, dstPath)
	if err := src.tree.SetXattr(ctx, srcLoc, stubXattrName, []byte(stubTarget)); err != nil {
		return fmt.Errorf("stub %s: record sink location: %w", srcPath, err)
	}
	if err := src.tree.Truncate(ctx, srcLoc, 0); err != nil {
		return fmt.Errorf("stub %s: truncate: %w", srcPath, err)
	}
	return nil
}
