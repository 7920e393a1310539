// Package optim searches configuration parameters for the run that
// minimizes a recorded metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/experiment"
)

// Param is one axis of the grid.
type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=v1,v2,...".
func ParseParam(s string) (Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Param{}, dynamo.Configf("parse_param", s, "expected name=v1,v2,...")
	}
	p := Param{Name: strings.TrimSpace(name)}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Param{}, dynamo.Configf("parse_param", p.Name, "bad value %q", f)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

// RunFunc runs one configuration to completion.
type RunFunc func(ctx context.Context, cfg *config.Config) (*experiment.Summary, error)

// Trial is one grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	RunID  string
	Err    error
}

type Result struct {
	Best      map[string]float64
	BestValue float64
	Trials    []Trial
}

type GridSearch struct {
	params []Param
	run    RunFunc
	logger *log.Logger
}

type Option func(*GridSearch)

// WithRunner replaces the session runner, mainly for tests.
func WithRunner(fn RunFunc) Option {
	return func(g *GridSearch) { g.run = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(g *GridSearch) { g.logger = l }
}

func NewGridSearch(params []Param, opts ...Option) *GridSearch {
	g := &GridSearch{params: params, run: RunSession, logger: log.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RunSession runs cfg in a headless session.
func RunSession(ctx context.Context, cfg *config.Config) (*experiment.Summary, error) {
	sess, err := experiment.NewSession(cfg, experiment.WithLogger(log.New(io.Discard)))
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, p := range g.params {
		n *= len(p.Values)
	}
	return n
}

// Search runs every grid point on a copy of base and keeps the one with the
// lowest metric. Points that fail to build or diverge are recorded and
// skipped. Cancellation stops the search and returns what was found.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (*Result, error) {
	for _, p := range g.params {
		if len(p.Values) == 0 {
			return nil, dynamo.Configf("grid_search", p.Name, "no values")
		}
		check := *base
		if err := check.Set(p.Name, p.Values[0]); err != nil {
			return nil, err
		}
	}

	res := &Result{BestValue: math.Inf(1)}
	err := g.searchRecursive(ctx, 0, map[string]float64{}, base, metric, res)
	if res.Best == nil && err == nil {
		err = fmt.Errorf("grid search: no trial produced %s", metric)
	}
	return res, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metric string,
	res *Result,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.params) {
		res.Trials = append(res.Trials, g.trial(ctx, base, current, metric))
		tr := res.Trials[len(res.Trials)-1]
		if errors.Is(tr.Err, context.Canceled) || errors.Is(tr.Err, context.DeadlineExceeded) {
			return tr.Err
		}
		if tr.Err == nil && tr.Value < res.BestValue {
			res.BestValue = tr.Value
			res.Best = tr.Params
		}
		return nil
	}

	p := g.params[depth]
	for _, val := range p.Values {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[p.Name] = val

		if err := g.searchRecursive(ctx, depth+1, next, base, metric, res); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) trial(ctx context.Context, base *config.Config, params map[string]float64, metric string) Trial {
	tr := Trial{Params: params, Value: math.Inf(1)}
	cfg := *base
	if tr.Err = cfg.SetAll(params); tr.Err != nil {
		return tr
	}

	sum, err := g.run(ctx, &cfg)
	if sum != nil {
		tr.RunID = sum.RunID
	}
	if err != nil {
		tr.Err = err
		g.logger.Warn("trial failed", "params", FormatParams(params), "err", err)
		return tr
	}
	v, ok := sum.Metrics[metric]
	if !ok {
		tr.Err = fmt.Errorf("metric %s not recorded", metric)
		return tr
	}
	tr.Value = v
	g.logger.Info("trial", "params", FormatParams(params), metric, v)
	return tr
}

// FormatParams renders params as sorted name=value pairs.
func FormatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}
