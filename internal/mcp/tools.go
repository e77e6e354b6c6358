package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"graphreap/internal/graph"
	"graphreap/internal/hierarchy"
	"graphreap/internal/reap"
)

type DeleteInput struct {
	Type    string   `json:"type" jsonschema:"root type name, e.g. Image"`
	IDs     []int64  `json:"ids,omitempty" jsonschema:"root row ids"`
	Owner   *int64   `json:"owner,omitempty" jsonschema:"restrict roots to this owner"`
	Group   *int64   `json:"group,omitempty" jsonschema:"restrict roots to this group"`
	Since   string   `json:"since,omitempty" jsonschema:"RFC3339 lower bound on the type's time column"`
	Until   string   `json:"until,omitempty" jsonschema:"RFC3339 upper bound on the type's time column"`
	Exclude []string `json:"exclude,omitempty" jsonschema:"child types to leave in place"`
	DryRun  bool     `json:"dry_run,omitempty" jsonschema:"execute and roll back"`
}

type LoadHierarchyInput struct {
	Root  string  `json:"root" jsonschema:"Project or Dataset"`
	IDs   []int64 `json:"ids,omitempty" jsonschema:"root ids; omit to select by owner or group"`
	Owner *int64  `json:"owner,omitempty" jsonschema:"owner filter"`
	Group *int64  `json:"group,omitempty" jsonschema:"group filter"`
}

type GetSpecInput struct{}

type StepOutput struct {
	Index      int     `json:"index"`
	Type       string  `json:"type"`
	Table      string  `json:"table"`
	Kind       string  `json:"kind"`
	IDs        []int64 `json:"ids,omitempty"`
	ForeignID  *int64  `json:"foreign_id,omitempty"`
	BestEffort bool    `json:"best_effort,omitempty"`
}

type PlanOutput struct {
	RequestID    string       `json:"request_id"`
	OriginalSize int          `json:"original_size"`
	Steps        []StepOutput `json:"steps"`
}

type StepResultOutput struct {
	Index     int     `json:"index"`
	Table     string  `json:"table"`
	Kind      string  `json:"kind"`
	IDs       []int64 `json:"ids,omitempty"`
	ForeignID *int64  `json:"foreign_id,omitempty"`
	State     string  `json:"state"`
	Affected  int64   `json:"affected"`
	Spawned   int     `json:"spawned,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type DeleteOutput struct {
	RequestID string             `json:"request_id"`
	Committed bool               `json:"committed"`
	Deleted   map[string]int64   `json:"deleted"`
	Results   []StepResultOutput `json:"results"`
}

type LoadHierarchyOutput struct {
	Roots []*hierarchy.Node `json:"roots"`
}

type SpecOutput struct {
	Types []TypeOutput `json:"types"`
}

type TypeOutput struct {
	Name    string        `json:"name"`
	Table   string        `json:"table"`
	Ops     string        `json:"ops,omitempty"`
	Entries []EntryOutput `json:"entries"`
}

type EntryOutput struct {
	Child    string `json:"child"`
	Property string `json:"property"`
	Ops      string `json:"ops"`
	Scope    string `json:"scope,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "plan_delete",
		Description: "Plan a cascading delete without changing any data",
	}, s.handlePlanDelete)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete",
		Description: "Delete rows and everything they own in one transaction",
	}, s.handleDelete)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "load_hierarchy",
		Description: "Load project or dataset trees down to images",
	}, s.handleLoadHierarchy)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_spec",
		Description: "Return the loaded graph spec",
	}, s.handleGetSpec)
}

func (s *Server) handlePlanDelete(ctx context.Context, req *sdk.CallToolRequest, input DeleteInput) (*sdk.CallToolResult, PlanOutput, error) {
	r, err := requestFromInput(input)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	res, err := s.deleter.Plan(ctx, r)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	return nil, planOutputFromSteps(res), nil
}

func (s *Server) handleDelete(ctx context.Context, req *sdk.CallToolRequest, input DeleteInput) (*sdk.CallToolResult, DeleteOutput, error) {
	r, err := requestFromInput(input)
	if err != nil {
		return nil, DeleteOutput{}, err
	}

	run := s.deleter.Delete
	if input.DryRun {
		run = s.deleter.DryRun
	}
	res, err := run(ctx, r)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	s.logger.Info("delete tool finished", "requestID", res.RequestID.String(), "committed", res.Committed)
	return nil, deleteOutputFromResult(res), nil
}

func (s *Server) handleLoadHierarchy(ctx context.Context, req *sdk.CallToolRequest, input LoadHierarchyInput) (*sdk.CallToolResult, LoadHierarchyOutput, error) {
	root, err := hierarchy.ParseRoot(input.Root)
	if err != nil {
		return nil, LoadHierarchyOutput{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, LoadHierarchyOutput{}, err
	}
	defer tx.Rollback(ctx)

	loader := hierarchy.NewLoader(s.registry, tx, s.logger)
	roots, err := loader.LoadContainerHierarchy(ctx, root, input.IDs, hierarchy.Options{Owner: input.Owner, Group: input.Group})
	if err != nil {
		return nil, LoadHierarchyOutput{}, err
	}
	return nil, LoadHierarchyOutput{Roots: roots}, nil
}

func (s *Server) handleGetSpec(ctx context.Context, req *sdk.CallToolRequest, input GetSpecInput) (*sdk.CallToolResult, SpecOutput, error) {
	return nil, specOutputFromRegistry(s.registry), nil
}

func requestFromInput(input DeleteInput) (reap.Request, error) {
	if input.Type == "" {
		return reap.Request{}, fmt.Errorf("type is required")
	}
	opts := graph.Options{Owner: input.Owner, Group: input.Group, Exclude: input.Exclude}
	var err error
	if opts.Since, err = parseTime("since", input.Since); err != nil {
		return reap.Request{}, err
	}
	if opts.Until, err = parseTime("until", input.Until); err != nil {
		return reap.Request{}, err
	}
	return reap.Request{Type: input.Type, IDs: input.IDs, Options: opts}, nil
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", field, err)
	}
	return &t, nil
}

func planOutputFromSteps(res *reap.Result) PlanOutput {
	out := PlanOutput{RequestID: res.RequestID.String(), Steps: []StepOutput{}}
	if res.Plan == nil {
		return out
	}
	out.OriginalSize = res.Plan.OriginalSize()
	for _, step := range res.Plan.All() {
		so := StepOutput{
			Index:      step.Index,
			Type:       step.Type,
			Table:      step.Table,
			Kind:       step.Kind.String(),
			IDs:        step.IDs(),
			BestEffort: step.BestEffort,
		}
		if step.Validation != nil {
			so.ForeignID = step.Validation.ForeignID
		}
		out.Steps = append(out.Steps, so)
	}
	return out
}

func deleteOutputFromResult(res *reap.Result) DeleteOutput {
	out := DeleteOutput{
		RequestID: res.RequestID.String(),
		Committed: res.Committed,
		Deleted:   map[string]int64{},
		Results:   []StepResultOutput{},
	}
	if res.Report == nil {
		return out
	}
	out.Deleted = res.Report.Deleted()
	for _, r := range res.Report.Results {
		ro := StepResultOutput{
			Index:     r.Index,
			Table:     r.Table,
			Kind:      r.Kind.String(),
			IDs:       append([]int64{}, r.IDs...),
			ForeignID: r.ForeignID,
			State:     r.State.String(),
			Affected:  r.Affected,
			Spawned:   r.Spawned,
		}
		if r.Err != nil {
			ro.Error = r.Err.Error()
		}
		out.Results = append(out.Results, ro)
	}
	return out
}

func specOutputFromRegistry(reg *graph.Registry) SpecOutput {
	if reg == nil {
		return SpecOutput{}
	}

	specs := reg.Specs()
	out := SpecOutput{Types: make([]TypeOutput, 0, len(specs))}
	for _, spec := range specs {
		typeOut := TypeOutput{
			Name:    spec.Name,
			Table:   spec.Table,
			Entries: make([]EntryOutput, 0, len(spec.Entries)),
		}
		if spec.Ops != 0 {
			typeOut.Ops = spec.Ops.String()
		}
		for _, e := range spec.Entries {
			entryOut := EntryOutput{Child: e.Child, Property: e.Property, Ops: e.Ops.String()}
			if e.Reap() {
				entryOut.Scope = e.Scope.String()
			}
			typeOut.Entries = append(typeOut.Entries, entryOut)
		}
		out.Types = append(out.Types, typeOut)
	}
	return out
}
