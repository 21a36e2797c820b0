package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openmined/mine/pkg/ipfs"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
	"github.com/openmined/mine/trainer"
)

// cycle is the state handed from one training stage to the next.
type cycle struct {
	model            sonar.Model
	workspace        *trainer.Workspace
	modelPath        string
	gradientPath     string
	gradientsAddress string
	receipt          sonar.Receipt
}

type stage struct {
	name string
	run  func(ctx context.Context, c *cycle) error
}

func (svc *service) stages() []stage {
	return []stage{
		{name: "workspace", run: svc.prepare},
		{name: "download", run: svc.download},
		{name: "train", run: svc.train},
		{name: "upload", run: svc.upload},
		{name: "submit", run: svc.submit},
	}
}

func (svc *service) Train(ctx context.Context, model sonar.Model) (sonar.Receipt, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.connected(); err != nil {
		return sonar.Receipt{}, err
	}

	svc.log(ctx, fmt.Sprintf("model#%d with %d gradients at IPFS:%s", model.ID, model.GradientCount, model.WeightsAddress))

	c := &cycle{model: model}
	for _, st := range svc.stages() {
		if err := st.run(ctx, c); err != nil {
			svc.fail(ctx, fmt.Sprintf("Training model %d failed at %s stage", model.ID, st.name), err)

			return sonar.Receipt{}, err
		}
	}

	svc.record(ctx, c)

	if svc.cfg.Cleanup {
		if err := c.workspace.Remove(); err != nil {
			svc.logger.Warn("Failed to remove workspace", slog.String("dir", c.workspace.Dir), slog.Any("error", err))
		}
	}

	return c.receipt, nil
}

func (svc *service) prepare(_ context.Context, c *cycle) error {
	ws, err := trainer.NewWorkspace(svc.cfg.WorkspaceDir, svc.files)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspaceFailed, err)
	}
	c.workspace = ws

	if c.modelPath, err = ws.Path(trainer.ModelFile); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspaceFailed, err)
	}
	if c.gradientPath, err = ws.Path(trainer.GradientFile); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspaceFailed, err)
	}

	return nil
}

func (svc *service) download(ctx context.Context, c *cycle) error {
	svc.log(ctx, fmt.Sprintf("Downloading model %d", c.model.ID))

	file, err := os.Create(c.modelPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	err = svc.store.Get(ctx, c.model.WeightsAddress, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	return nil
}

func (svc *service) train(ctx context.Context, c *cycle) error {
	svc.log(ctx, fmt.Sprintf("Training model %d", c.model.ID))

	start := time.Now()
	err := svc.runner.Run(ctx, trainer.Job{
		ModelPath:    c.modelPath,
		InputPath:    svc.cfg.InputData,
		TargetPath:   svc.cfg.TargetData,
		GradientPath: c.gradientPath,
	})
	if err != nil {
		var exitErr *trainer.ExitError
		if errors.As(err, &exitErr) {
			return &TrainingFailedError{Code: exitErr.Code}
		}

		return &TrainingFailedError{Code: -1, Err: err}
	}

	if svc.cfg.Debug {
		svc.log(ctx, fmt.Sprintf("Finished training the model in %.3f s", time.Since(start).Seconds()))
	}

	return nil
}

func (svc *service) upload(ctx context.Context, c *cycle) error {
	svc.log(ctx, "Uploading new gradients to IPFS")

	results, err := svc.store.Add(ctx, ipfs.File{Path: c.gradientPath})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	address, err := matchUpload(results, c.gradientPath)
	if err != nil {
		return err
	}
	c.gradientsAddress = address

	return nil
}

// matchUpload picks the address the store assigned to path.
func matchUpload(results []ipfs.AddResult, path string) (string, error) {
	var matches []ipfs.AddResult
	for _, r := range results {
		if ipfs.SamePath(r.Name, path) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrUploadResultMissing, path)
	case 1:
		if matches[0].Hash == "" {
			return "", fmt.Errorf("%w: %s", ErrUploadResultMissing, path)
		}

		return matches[0].Hash, nil
	default:
		return "", fmt.Errorf("%w: %d entries for %s", ErrAmbiguousUploadResult, len(matches), path)
	}
}

func (svc *service) submit(ctx context.Context, c *cycle) error {
	receipt, err := svc.gateway.AddGradient(ctx, c.model.ID, c.gradientsAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	c.receipt = receipt

	if svc.cfg.Debug {
		svc.log(ctx, fmt.Sprintf("Successfully propagated new gradient to Sonar with tx: %s for the price of %d gas at IPFS:%s",
			receipt.TxHash, receipt.GasUsed, c.gradientsAddress))

		return nil
	}
	svc.log(ctx, fmt.Sprintf("Successfully propagated new gradient to Sonar at IPFS:%s", c.gradientsAddress))

	return nil
}

// record saves a completed cycle in the ledger. The gradient is already on
// chain, so a ledger failure is reported but does not fail the cycle.
func (svc *service) record(ctx context.Context, c *cycle) {
	if svc.ledger == nil {
		return
	}

	err := svc.ledger.Save(ctx, storage.Submission{
		ModelID:          c.model.ID,
		WeightsAddress:   c.model.WeightsAddress,
		GradientsAddress: c.gradientsAddress,
		TxHash:           c.receipt.TxHash,
		GasUsed:          c.receipt.GasUsed,
		SubmittedAt:      svc.now(),
	})
	if err != nil {
		svc.fail(ctx, fmt.Sprintf("Failed to record submission for model %d", c.model.ID), err)
	}
}
