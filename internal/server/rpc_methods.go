package server

import (
	"context"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/warpmulti/common"
)

// Custom JSON-RPC error codes.
const (
	codePoolNotFound  = jrpc2.Code(-32001)
	codeSubmitFailed  = jrpc2.Code(-32002)
	codeInvalidParams = jrpc2.Code(-32602)
)

func (s *Server) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   s.opts.Version,
		Commit:    s.opts.Commit,
		BuildType: s.opts.BuildType,
	}, nil
}

func (s *Server) poolSubmit(ctx context.Context, p *common.SubmitParams) (*common.SubmitResult, error) {
	if len(p.URLs) == 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: urls"}
	}
	for _, u := range p.URLs {
		if strings.TrimSpace(u) == "" {
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "empty url"}
		}
	}
	id, err := s.Submit(ctx, p.URLs, p.Dir)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeSubmitFailed, Message: err.Error()}
	}
	return &common.SubmitResult{ID: id}, nil
}

func (s *Server) poolStatus(ctx context.Context, p *common.StatusParams) (*common.PoolStatus, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: id"}
	}
	st, err := s.Status(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, &jrpc2.Error{Code: codePoolNotFound, Message: "pool not found"}
	}
	return st, nil
}

func (s *Server) poolList(ctx context.Context) (*common.ListResult, error) {
	pools, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return &common.ListResult{Pools: pools}, nil
}
