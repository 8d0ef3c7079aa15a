package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/logging"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// ErrPredefinedAbsent is the cause of a SchemaError for a predefined table
// missing from the catalog.
var ErrPredefinedAbsent = errors.New("predefined table does not exist")

// Options configures a Reconciler.
type Options struct {
	// Predefined lists tables owned by an external schema file.
	Predefined config.TableSet
	Job        string
	Logger     *zap.Logger
}

// Target describes a destination table after Ensure.
type Target struct {
	Table      string
	Predefined bool
	columns    map[string]struct{}
}

// Has reports whether col is known to exist on the table.
func (t Target) Has(col string) bool {
	_, ok := t.columns[strings.ToLower(col)]
	return ok
}

type ensured struct {
	target Target
	err    error
}

// Reconciler applies plans against one repository for the duration of a
// run. It remembers applied actions, so re-applying is a no-op, and
// collapses concurrent applies of the same plan.
type Reconciler struct {
	repo storage.Repository
	opts Options
	log  *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	applied map[string]struct{}
	cache   map[string]ensured
}

// New returns a Reconciler bound to repo.
func New(repo storage.Repository, opts Options) *Reconciler {
	return &Reconciler{
		repo:    repo,
		opts:    opts,
		log:     logging.OrNop(opts.Logger),
		applied: make(map[string]struct{}),
		cache:   make(map[string]ensured),
	}
}

// Plan snapshots the destination table of cm and plans against it.
func (r *Reconciler) Plan(ctx context.Context, cm config.CollectionMapping) (Plan, storage.Catalog, error) {
	snap, err := r.repo.Snapshot(ctx, []string{cm.DestinationTable})
	if err != nil {
		return Plan{}, storage.Catalog{}, r.fail(cm.DestinationTable, "", "snapshot", err)
	}
	return PlanFor(cm, snap, r.opts.Predefined), snap, nil
}

// Apply executes plan and returns the actions applied by this call.
// Actions already applied during the run are skipped. Conflicts and
// unreachable tables yield a *etlerr.SchemaError without running any DDL.
// Losing the catalog yields a *etlerr.CatalogUnavailableError.
func (r *Reconciler) Apply(ctx context.Context, plan Plan) ([]Action, error) {
	if plan.Unreachable {
		return nil, &etlerr.SchemaError{Table: plan.Table, Err: ErrPredefinedAbsent}
	}
	if len(plan.Conflicts) > 0 {
		errs := make([]error, len(plan.Conflicts))
		for i, c := range plan.Conflicts {
			errs[i] = c
		}
		return nil, &etlerr.SchemaError{Table: plan.Table, Column: plan.Conflicts[0].Column, Err: errors.Join(errs...)}
	}
	if len(plan.Actions) == 0 {
		return nil, nil
	}

	keys := make([]string, len(plan.Actions))
	for i, a := range plan.Actions {
		keys[i] = a.key()
	}
	v, err, _ := r.group.Do(plan.Table+"\x01"+strings.Join(keys, "\x01"), func() (any, error) {
		return r.apply(ctx, plan)
	})
	done, _ := v.([]Action)
	return done, err
}

func (r *Reconciler) apply(ctx context.Context, plan Plan) ([]Action, error) {
	d := r.repo.Dialect()
	var done []Action
	for _, a := range plan.Actions {
		k := a.key()
		r.mu.Lock()
		_, seen := r.applied[k]
		r.mu.Unlock()
		if seen {
			continue
		}

		var (
			stmts  []string
			err    error
			column string
		)
		switch a.Kind {
		case CreateTable:
			stmts, err = d.CreateTable(tableDef(a))
		case AddColumn:
			column = a.Column.Name
			stmts, err = d.AddColumn(a.Table, a.Column)
		default:
			err = fmt.Errorf("unknown action kind %q", a.Kind)
		}
		if err != nil {
			return done, &etlerr.SchemaError{Table: a.Table, Column: column, Err: err}
		}

		start := time.Now()
		for _, s := range stmts {
			if err = r.repo.Exec(ctx, s); err != nil {
				break
			}
		}
		metrics.RecordStep(r.opts.Job, "reconcile", err, time.Since(start))
		if err != nil {
			return done, r.fail(a.Table, column, string(a.Kind), err)
		}

		r.mu.Lock()
		r.applied[k] = struct{}{}
		r.mu.Unlock()
		metrics.RecordSchemaAction(r.opts.Job, string(a.Kind))
		r.log.Info("schema action applied", zap.String("action", a.String()))
		done = append(done, a)
	}
	return done, nil
}

// Ensure plans and applies cm once per run and describes the resulting
// table. Later calls for the same mapping return the cached outcome, except
// after a fatal catalog error.
func (r *Reconciler) Ensure(ctx context.Context, cm config.CollectionMapping) (Target, error) {
	key := cm.SourceCollection + "\x00" + cm.DestinationTable
	r.mu.Lock()
	res, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return res.target, res.err
	}

	target, err := r.ensure(ctx, cm)
	if err != nil {
		var se *etlerr.SchemaError
		if errors.As(err, &se) {
			r.log.Warn("table unreachable for this run",
				zap.String("collection", cm.SourceCollection),
				zap.String("table", cm.DestinationTable),
				zap.Error(err))
		}
	}
	if !etlerr.IsFatal(err) {
		r.mu.Lock()
		r.cache[key] = ensured{target: target, err: err}
		r.mu.Unlock()
	}
	return target, err
}

func (r *Reconciler) ensure(ctx context.Context, cm config.CollectionMapping) (Target, error) {
	plan, snap, err := r.Plan(ctx, cm)
	if err != nil {
		return Target{}, err
	}
	if _, err := r.Apply(ctx, plan); err != nil {
		return Target{}, err
	}

	t := Target{
		Table:      cm.DestinationTable,
		Predefined: r.opts.Predefined.Has(cm.DestinationTable),
		columns:    make(map[string]struct{}),
	}
	if existing, ok := snap.Lookup(cm.DestinationTable); ok {
		for c := range existing.Columns {
			t.columns[c] = struct{}{}
		}
	}
	for _, a := range plan.Actions {
		for _, c := range actionColumns(a) {
			t.columns[strings.ToLower(c)] = struct{}{}
		}
	}
	return t, nil
}

// Applied returns the actions applied so far, sorted by key.
func (r *Reconciler) Applied() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.applied))
	for k := range r.applied {
		out = append(out, strings.ReplaceAll(k, "\x00", " "))
	}
	sort.Strings(out)
	return out
}

// fail maps a repository error to the run's error taxonomy.
func (r *Reconciler) fail(table, column, op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return &etlerr.CatalogUnavailableError{Op: op + " " + table, Err: err}
	}
	return &etlerr.SchemaError{Table: table, Column: column, Err: err}
}

func actionColumns(a Action) []string {
	if a.Kind == AddColumn {
		return []string{a.Column.Name}
	}
	out := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		out[i] = c.Name
	}
	return out
}
