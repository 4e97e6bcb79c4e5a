package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/simulator"
)

const (
	runsPrefix = "runs/"
	resultFile = "result.json"
	ledgerFile = "ledger.csv"
)

// Options selects and configures a Store backend
type Options struct {
	Type string // "localfs" or "s3"
	Path string
	S3   S3Config
}

// Open builds the configured Store
func Open(opts Options) (Store, error) {
	switch opts.Type {
	case "", "localfs":
		return NewLocalFS(opts.Path)
	case "s3":
		return NewS3(opts.S3)
	default:
		return nil, core.ConfigError("unknown archive type %q", opts.Type)
	}
}

// Reports stores each backtest result as JSON next to its trade ledger
// under runs/<run_id>/.
type Reports struct {
	store  Store
	logger *zap.Logger
}

// NewReports wraps a Store
func NewReports(store Store, logger *zap.Logger) *Reports {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reports{store: store, logger: logger}
}

func runKey(runID, file string) (string, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, fmt.Errorf("invalid run id %q", runID))
	}
	return runsPrefix + runID + "/" + file, nil
}

// Save writes the result and its ledger and returns the result key
func (r *Reports) Save(ctx context.Context, res *backtest.Result) (string, error) {
	key, err := runKey(res.RunID, resultFile)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}

	var ledger bytes.Buffer
	if err := simulator.WriteLedger(&ledger, res.Trades); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}
	ledgerKey, _ := runKey(res.RunID, ledgerFile)
	if err := r.store.Put(ctx, ledgerKey, ledger.Bytes()); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}

	r.logger.Info("report archived",
		zap.String("run_id", res.RunID),
		zap.String("key", key),
		zap.Int("trades", res.NumTrades),
	)
	return key, nil
}

// Load reads back an archived result
func (r *Reports) Load(ctx context.Context, runID string) (*backtest.Result, error) {
	key, err := runKey(runID, resultFile)
	if err != nil {
		return nil, err
	}
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no archived run %s", runID))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	return &res, nil
}

// Ledger returns the archived trade ledger CSV
func (r *Reports) Ledger(ctx context.Context, runID string) ([]byte, error) {
	key, err := runKey(runID, ledgerFile)
	if err != nil {
		return nil, err
	}
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no archived ledger %s", runID))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	return data, nil
}

// Runs lists archived run ids in key order
func (r *Reports) Runs(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx, runsPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	ids := []string{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, runsPrefix)
		if id, file, ok := strings.Cut(rest, "/"); ok && file == resultFile {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes an archived run
func (r *Reports) Delete(ctx context.Context, runID string) error {
	for _, file := range []string{resultFile, ledgerFile} {
		key, err := runKey(runID, file)
		if err != nil {
			return err
		}
		if err := r.store.Delete(ctx, key); err != nil {
			return core.WrapError(core.ErrArchiveFailed, err)
		}
	}
	return nil
}
