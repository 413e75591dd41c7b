// Command dataconnect runs the house-of-sheelaa connector operations from the
// command line and prints their results as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"odoo-proxy/internal/dataconnect"
)

type globals struct {
	Project     string        `kong:"required,help='Firebase project ID.',env='DATACONNECT_PROJECT'"`
	Endpoint    string        `kong:"help='API endpoint; point at the emulator for local work.',env='DATACONNECT_ENDPOINT',default='${endpoint}'"`
	AccessToken string        `kong:"name='access-token',help='OAuth2 access token sent as a bearer token.',env='DATACONNECT_ACCESS_TOKEN'"`
	Timeout     time.Duration `kong:"help='Per-call timeout.',default='30s'"`
	Debug       bool          `kong:"help='Log requests to stderr.'"`
}

type cli struct {
	globals

	CreateList   createListCmd   `kong:"cmd,name='create-list',help='Create a public list.'"`
	Lists        listsCmd        `kong:"cmd,help='List public lists.'"`
	AddMovie     addMovieCmd     `kong:"cmd,name='add-movie',help='Add a movie to a list.'"`
	WatchHistory watchHistoryCmd `kong:"cmd,name='watch-history',help='Show the caller watch history.'"`
}

type createListCmd struct {
	Name        string `kong:"arg,help='List name.'"`
	Description string `kong:"help='List description.'"`
}

func (c *createListCmd) Run(ctx context.Context, dc *dataconnect.Client) error {
	data, err := dc.CreatePublicList(ctx, dataconnect.CreatePublicListVariables{
		Name:        c.Name,
		Description: c.Description,
	})
	return printResult(data, err)
}

type listsCmd struct{}

func (c *listsCmd) Run(ctx context.Context, dc *dataconnect.Client) error {
	data, err := dc.ListPublicLists(ctx)
	return printResult(data, err)
}

type addMovieCmd struct {
	ListID   uuid.UUID `kong:"arg,name='list-id',help='List ID.'"`
	MovieID  uuid.UUID `kong:"arg,name='movie-id',help='Movie ID.'"`
	Position int       `kong:"help='Position within the list.',default='0'"`
	Note     string    `kong:"help='Optional note.'"`
}

func (c *addMovieCmd) Run(ctx context.Context, dc *dataconnect.Client) error {
	vars := dataconnect.AddMovieToListVariables{
		ListID:   c.ListID,
		MovieID:  c.MovieID,
		Position: c.Position,
	}
	if c.Note != "" {
		vars.Note = &c.Note
	}
	data, err := dc.AddMovieToList(ctx, vars)
	return printResult(data, err)
}

type watchHistoryCmd struct{}

func (c *watchHistoryCmd) Run(ctx context.Context, dc *dataconnect.Client) error {
	data, err := dc.GetMyWatchHistory(ctx)
	return printResult(data, err)
}

// printResult writes data as indented JSON. Partial data from an operation
// error is printed before the error is returned.
func printResult(data any, err error) error {
	var opErr *dataconnect.OperationError
	if err != nil && !errors.As(err, &opErr) {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(data); encErr != nil {
		return fmt.Errorf("write result: %w", encErr)
	}
	return err
}

func newClient(g *globals) (*dataconnect.Client, error) {
	level := slog.LevelWarn
	if g.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []dataconnect.Option{
		dataconnect.WithEndpoint(g.Endpoint),
		dataconnect.WithLogger(logger),
	}
	if g.AccessToken != "" {
		opts = append(opts, dataconnect.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.AccessToken, TokenType: "Bearer"}),
		))
	}
	return dataconnect.NewClient(g.Project, opts...)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("dataconnect"),
		kong.Description("Run house-of-sheelaa Data Connect operations."),
		kong.Vars{"endpoint": dataconnect.DefaultEndpoint},
		kong.UsageOnError(),
	)

	dc, err := newClient(&c.globals)
	kctx.FatalIfErrorf(err)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(dc)
	cancel()
	kctx.FatalIfErrorf(err)
}
