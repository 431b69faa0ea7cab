package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// AnalystPreprocessor prepares the work-record table the text-to-SQL analyst queries
// and publishes the semantic model describing it.
type AnalystPreprocessor struct {
	warehouse core.Warehouse
	obj       core.ObjectClient // nil when no bucket is configured
	cfg       *AnalystConfig
	log       *zap.Logger
}

func NewAnalystPreprocessor(wh core.Warehouse, obj core.ObjectClient, cfg *AnalystConfig, log *zap.Logger) *AnalystPreprocessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalystPreprocessor{warehouse: wh, obj: obj, cfg: cfg, log: log}
}

func (p *AnalystPreprocessor) Name() string { return PipelineAnalyst }

// WithOptions returns a copy of the pipeline reading opts.SourceFile as its data file.
func (p *AnalystPreprocessor) WithOptions(opts RunOptions) Pipeline {
	cfg := *p.cfg
	if opts.SourceFile != "" {
		cfg.DataFile = opts.SourceFile
	}
	cfg.Force = cfg.Force || opts.Force
	cp := *p
	cp.cfg = &cfg
	return &cp
}

// Run follows the same skip-on-exists state machine as the search pipeline. The
// register step enables Azure OpenAI when asked to and uploads the semantic model.
func (p *AnalystPreprocessor) Run(ctx context.Context) (*RunReport, error) {
	r := newRun(PipelineAnalyst, p.log)
	defer r.finish()

	sess, err := p.warehouse.OpenSession(ctx)
	if err != nil {
		return r.fail(core.NewStageError(core.StageCheckExists, core.ErrProvision, err))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.log.Warn("closing warehouse session", zap.Error(cerr))
		}
	}()

	prov := sess.Provisioner(p.cfg.Table)

	r.advance(StateCheckExists)
	var exists bool
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		exists, err = prov.TableExists(ctx)
		return err
	}); err != nil {
		return r.fail(err)
	}

	if exists && !p.cfg.Force {
		r.advance(StateSkipIngest)
	} else {
		// parse before provisioning so a bad data file leaves the table untouched
		records, err := ReadWorkRecords(p.cfg.DataFile)
		if err != nil {
			return r.fail(err)
		}

		r.advance(StateProvision)
		if err := callWithTimeout(ctx, p.cfg.CallTimeout, prov.Provision); err != nil {
			return r.fail(err)
		}

		rows := make([][]any, len(records))
		for i, rec := range records {
			rows[i] = rec.Values()
		}

		r.advance(StateLoad)
		if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
			return sess.Loader().LoadRows(ctx, p.cfg.Table, rows)
		}); err != nil {
			discardTable(ctx, r, prov, p.cfg.CallTimeout)
			return r.fail(err)
		}
		r.report.Ingested = true
		r.report.RowCount = len(rows)
	}

	r.advance(StateRegisterIndex)
	if p.cfg.EnableAOAI {
		err := callWithTimeout(ctx, p.cfg.CallTimeout, sess.EnableAnalystAOAI)
		switch {
		case errors.Is(err, core.ErrUnsupportedByDialect):
			r.log.Warn("azure openai switch not available on this warehouse", zap.Error(err))
		case err != nil:
			r.report.DataDurable = true
			return r.fail(err)
		default:
			r.log.Info("azure openai enabled for analyst")
		}
	}

	tool := models.AnalystTool{
		Name:              strings.ToLower(p.cfg.Table.Name) + "_analyst",
		Description:       "answers questions about monthly work hours and overtime per employee and department",
		SemanticModelFile: filepath.Base(p.cfg.SemanticModelPath),
	}
	if p.cfg.SemanticModelPath != "" {
		url, err := p.publishSemanticModel(ctx)
		if err != nil {
			r.report.DataDurable = true
			return r.fail(err)
		}
		tool.StageURL = url
	}
	r.report.Tool = tool

	r.advance(StateDone)
	return r.report, nil
}

// publishSemanticModel uploads the YAML model to object storage. Without a bucket the
// model stays local and only its file name is advertised.
func (p *AnalystPreprocessor) publishSemanticModel(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.cfg.SemanticModelPath)
	if err != nil {
		kind := core.ErrUnreadableDocument
		if errors.Is(err, fs.ErrNotExist) {
			kind = core.ErrDocumentNotFound
		}
		return "", core.NewStageError(core.StageRegisterIndex, kind, err)
	}
	if p.obj == nil || p.cfg.Bucket == "" {
		p.log.Info("no bucket configured, semantic model not uploaded", zap.String("path", p.cfg.SemanticModelPath))
		return "", nil
	}

	key := path.Join("semantic_models", filepath.Base(p.cfg.SemanticModelPath))
	var url string
	err = callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		url, err = p.obj.UploadFile(ctx, p.cfg.Bucket, key, bytes.NewReader(data), "application/x-yaml")
		return err
	})
	if err != nil {
		return "", core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration, fmt.Errorf("upload semantic model: %w", err))
	}
	p.log.Info("semantic model uploaded", zap.String("url", url))
	return url, nil
}

var workRecordHeader = []string{"work_month", "employee_name", "department", "total_work_hours", "overtime_hours", "work_reason"}

// ReadWorkRecords parses a CSV file whose header names the work-record columns in table order.
func ReadWorkRecords(file string) ([]models.WorkRecord, error) {
	if file == "" {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound, errors.New("no analyst data file configured"))
	}
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound, err)
	}
	if err != nil {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrUnreadableDocument, err)
	}
	defer f.Close()

	records, err := parseWorkRecords(f)
	if err != nil {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrUnreadableDocument, fmt.Errorf("%s: %w", file, err))
	}
	return records, nil
}

func parseWorkRecords(r io.Reader) ([]models.WorkRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(workRecordHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, want := range workRecordHeader {
		if got := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))); got != want {
			return nil, fmt.Errorf("column %d is %q, want %q", i+1, got, want)
		}
	}

	var out []models.WorkRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		total, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: total_work_hours: %w", line, err)
		}
		overtime, err := strconv.Atoi(strings.TrimSpace(rec[4]))
		if err != nil {
			return nil, fmt.Errorf("line %d: overtime_hours: %w", line, err)
		}
		out = append(out, models.WorkRecord{
			WorkMonth:      rec[0],
			EmployeeName:   rec[1],
			Department:     rec[2],
			TotalWorkHours: total,
			OvertimeHours:  overtime,
			WorkReason:     rec[5],
		})
	}
	return out, nil
}
