package fetch

import (
	"context"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/model"
)

// Executor runs one external command to completion.
type Executor interface {
	Execute(ctx context.Context, cmd command.Command) error
}

// Fetcher defines the interface for the fetch service.
type Fetcher interface {
	SetUpdateCallback(func(*model.FetchTask))
	Fetch(ctx context.Context, datasetID, bioproject string) (*Report, error)
	GetTask(id string) (*model.FetchTask, bool)
	GetAllTasks() []*model.FetchTask
}

var (
	_ Executor = (*ExecExecutor)(nil)
	_ Fetcher  = (*Service)(nil)
)
