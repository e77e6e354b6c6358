package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"graphreap/internal/graph"
	"graphreap/internal/reap"
	"graphreap/internal/store"
)

// Deleter is the part of reap.Service the tools call.
type Deleter interface {
	Plan(ctx context.Context, req reap.Request) (*reap.Result, error)
	Delete(ctx context.Context, req reap.Request) (*reap.Result, error)
	DryRun(ctx context.Context, req reap.Request) (*reap.Result, error)
}

type Server struct {
	registry *graph.Registry
	db       store.Store
	deleter  Deleter
	logger   *slog.Logger
	mcp      *sdk.Server
}

func NewServer(reg *graph.Registry, db store.Store, deleter Deleter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		db:       db,
		deleter:  deleter,
		logger:   logger,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "graphreap",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
